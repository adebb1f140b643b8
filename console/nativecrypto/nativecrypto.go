// Package nativecrypto is a demo native-function package: hashing,
// HMAC, base64, and crypt(3)-style password hashing exposed as script
// callables, the way the teacher's builtins/crypto.go exposes them to
// MOO verbs. It exists to exercise the native call ABI (argv in, a
// single value.Value out, userPtr threading the owning VM through)
// against real external libraries rather than a hand-rolled stub.
package nativecrypto

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"strings"

	"ember/console"
	"ember/value"

	crypt "github.com/amoghe/go-crypt"
	crypt2 "github.com/sergeymakinen/go-crypt"
	"golang.org/x/crypto/ripemd160"
)

// Register installs every function this package exposes into c's global
// namespace, under the names a script calls them by.
func Register(c *console.VM) {
	c.RegisterNative("encode_base64", builtinEncodeBase64, "encode_base64(str) -> str", 1, 1)
	c.RegisterNative("decode_base64", builtinDecodeBase64, "decode_base64(str) -> str", 1, 1)
	c.RegisterNative("string_hash", builtinStringHash, "string_hash(str [, algo]) -> str", 1, 2)
	c.RegisterNative("string_hmac", builtinStringHmac, "string_hmac(str, key [, algo]) -> str", 2, 3)
	c.RegisterNative("crypt", builtinCrypt, "crypt(str [, salt]) -> str", 1, 2)
	c.RegisterNative("crypt_new_hash", builtinCryptNewHash, "crypt_new_hash(str) -> str", 1, 1)
}

func argStr(c *console.VM, argv []value.Value, i int) string {
	if i >= len(argv) {
		return ""
	}
	return c.StringOf(argv[i])
}

func builtinEncodeBase64(userPtr any, argv []value.Value) value.Value {
	c := userPtr.(*console.VM)
	return c.LeaseString(base64.StdEncoding.EncodeToString([]byte(argStr(c, argv, 0))))
}

func builtinDecodeBase64(userPtr any, argv []value.Value) value.Value {
	c := userPtr.(*console.VM)
	decoded, err := base64.StdEncoding.DecodeString(argStr(c, argv, 0))
	if err != nil {
		return value.Value{}
	}
	return c.LeaseString(string(decoded))
}

func getHasher(algo string) (hash.Hash, bool) {
	switch strings.ToLower(algo) {
	case "md5":
		return md5.New(), true
	case "sha1":
		return sha1.New(), true
	case "sha256", "":
		return sha256.New(), true
	case "sha512":
		return sha512.New(), true
	case "ripemd160":
		return ripemd160.New(), true
	default:
		return nil, false
	}
}

func getHmacFunc(algo string) (func() hash.Hash, bool) {
	switch strings.ToLower(algo) {
	case "md5":
		return md5.New, true
	case "sha1":
		return sha1.New, true
	case "sha256", "":
		return sha256.New, true
	case "sha512":
		return sha512.New, true
	case "ripemd160":
		return ripemd160.New, true
	default:
		return nil, false
	}
}

func builtinStringHash(userPtr any, argv []value.Value) value.Value {
	c := userPtr.(*console.VM)
	algo := "sha256"
	if len(argv) >= 2 {
		algo = c.StringOf(argv[1])
	}
	hasher, ok := getHasher(algo)
	if !ok {
		return value.Value{}
	}
	hasher.Write([]byte(argStr(c, argv, 0)))
	return c.LeaseString(strings.ToUpper(hex.EncodeToString(hasher.Sum(nil))))
}

func builtinStringHmac(userPtr any, argv []value.Value) value.Value {
	c := userPtr.(*console.VM)
	algo := "sha256"
	if len(argv) >= 3 {
		algo = c.StringOf(argv[2])
	}
	h, ok := getHmacFunc(algo)
	if !ok {
		return value.Value{}
	}
	mac := hmac.New(h, []byte(argStr(c, argv, 1)))
	mac.Write([]byte(argStr(c, argv, 0)))
	return c.LeaseString(strings.ToUpper(hex.EncodeToString(mac.Sum(nil))))
}

// builtinCrypt hashes a password against an optional existing salt using
// crypt(3) semantics (DES/MD5/SHA256/SHA512 selected by the salt's
// prefix), delegating to a pure-Go implementation instead of cgo so the
// runtime stays portable across hosts without a system crypt(3).
func builtinCrypt(userPtr any, argv []value.Value) value.Value {
	c := userPtr.(*console.VM)
	password := argStr(c, argv, 0)
	salt := ""
	if len(argv) >= 2 {
		salt = argStr(c, argv, 1)
	}
	result, err := crypt.Crypt(password, salt)
	if err != nil {
		return value.Value{}
	}
	return c.LeaseString(result)
}

// builtinCryptNewHash generates a fresh salted password hash with no
// caller-supplied salt, for the common "store a new password" path.
func builtinCryptNewHash(userPtr any, argv []value.Value) value.Value {
	c := userPtr.(*console.VM)
	hashed, err := crypt2.NewHash(argStr(c, argv, 0))
	if err != nil {
		return value.Value{}
	}
	return c.LeaseString(hashed)
}
