package local

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// normalizeHashAlgo validates a configured algorithm name, defaulting to auto-detection.
func normalizeHashAlgo(hashAlgo string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(hashAlgo))
	if normalized == "" {
		normalized = "auto"
	}
	switch normalized {
	case "auto", "bcrypt", "argon2", "argon2id", "argon2i":
		return normalized, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", hashAlgo)
	}
}

// verifyHash reports whether password matches hash under algo.
// A mismatch is (false, nil); a malformed hash is an error.
func verifyHash(algo, hash, password string) (bool, error) {
	if algo == "auto" {
		algo = detectHashAlgo(hash)
	}
	switch algo {
	case "bcrypt":
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	case "argon2", "argon2id", "argon2i":
		return verifyArgon2(password, hash)
	default:
		return false, fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
}

func detectHashAlgo(hash string) string {
	switch {
	case strings.HasPrefix(hash, "$2a$"),
		strings.HasPrefix(hash, "$2b$"),
		strings.HasPrefix(hash, "$2y$"):
		return "bcrypt"
	case strings.HasPrefix(hash, "$argon2id$"):
		return "argon2id"
	case strings.HasPrefix(hash, "$argon2i$"):
		return "argon2i"
	}
	return "bcrypt"
}

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	keyLength   uint32
}

func verifyArgon2(password, encodedHash string) (bool, error) {
	variant, params, salt, hash, err := decodeArgon2Hash(encodedHash)
	if err != nil {
		return false, err
	}
	var derived []byte
	switch variant {
	case "argon2id":
		derived = argon2.IDKey([]byte(password), salt, params.iterations, params.memory, params.parallelism, params.keyLength)
	case "argon2i":
		derived = argon2.Key([]byte(password), salt, params.iterations, params.memory, params.parallelism, params.keyLength)
	default:
		return false, errors.New("unsupported argon2 variant")
	}
	return subtle.ConstantTimeCompare(hash, derived) == 1, nil
}

// decodeArgon2Hash parses the PHC string format: $argon2id$v=19$m=65536,t=3,p=2$salt$hash
func decodeArgon2Hash(encodedHash string) (string, argon2Params, []byte, []byte, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) < 6 {
		return "", argon2Params{}, nil, nil, errors.New("invalid argon2 hash format")
	}
	if parts[1] != "argon2id" && parts[1] != "argon2i" {
		return "", argon2Params{}, nil, nil, errors.New("unsupported argon2 variant")
	}
	if !strings.HasPrefix(parts[2], "v=") {
		return "", argon2Params{}, nil, nil, errors.New("invalid argon2 version")
	}

	params := argon2Params{}
	for _, part := range strings.Split(parts[3], ",") {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return "", argon2Params{}, nil, nil, errors.New("invalid argon2 params")
		}
		value, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return "", argon2Params{}, nil, nil, errors.New("invalid argon2 params")
		}
		switch key {
		case "m":
			params.memory = uint32(value)
		case "t":
			params.iterations = uint32(value)
		case "p":
			if value > 255 {
				return "", argon2Params{}, nil, nil, errors.New("invalid argon2 params")
			}
			params.parallelism = uint8(value)
		}
	}
	if params.memory == 0 || params.iterations == 0 || params.parallelism == 0 {
		return "", argon2Params{}, nil, nil, errors.New("invalid argon2 params")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return "", argon2Params{}, nil, nil, errors.New("invalid argon2 salt")
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return "", argon2Params{}, nil, nil, errors.New("invalid argon2 hash")
	}
	params.keyLength = uint32(len(hash))
	return parts[1], params, salt, hash, nil
}
