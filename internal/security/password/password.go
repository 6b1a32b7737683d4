// Package password define el contrato de hashing de credenciales y sus dos
// esquemas: el heredado sha256(salt+password) y argon2id.
package password

import "fmt"

// Hasher abstrae el esquema de hashing. Verify jamás propaga errores:
// un digest malformado simplemente no verifica.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

// New construye el hasher para el esquema configurado.
func New(scheme, salt string) (Hasher, error) {
	switch scheme {
	case "sha256":
		return &LegacySHA256{Salt: salt}, nil
	case "argon2id":
		return &Argon2ID{Params: Default}, nil
	default:
		return nil, fmt.Errorf("password: unknown scheme %q", scheme)
	}
}
