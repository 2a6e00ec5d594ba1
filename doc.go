// Package certfhe implements a symmetric, single-key homomorphic
// encryption scheme over GF(2): plaintext bits are encrypted into
// ciphertext chunks such that XOR and AND of ciphertexts correspond to
// XOR and AND of their plaintexts, and bit positions can be shuffled by
// a shared secret permutation without affecting decryption.
//
// A ciphertext is a reference-counted, copy-on-write DAG: contiguous
// ciphertext chunks (CCC) sit at the leaves, and addition/multiplication
// build CADD/CMUL nodes that defer the actual word-level work until a
// normalization pass decides it is cheap enough to materialize. This
// keeps a long chain of homomorphic operations from blowing up into a
// chunk count no machine could hold.
//
// Use cfctx.New to pick a Context (chunk width N and secret-position
// count D), NewSecretKey to draw a key over it, and SecretKey.Encrypt /
// Ciphertext.Decrypt to move bits in and out. Ciphertext.Add and
// Ciphertext.Multiply compose ciphertexts; Permutation and
// SecretKey.ApplyPermutation shuffle bit positions in lockstep across a
// key and everything encrypted under it.
package certfhe
