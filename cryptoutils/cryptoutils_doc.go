// Package cryptoutils provides the key handling shared by the metadata store
// and the key providers.
//
// Keys are represented with the securesystemslib key format, the same one
// recorded in role metadata:
//
//   - ed25519 keys carry the hex encoded 32 byte public key
//   - ecdsa and rsa keys carry the PEM encoded PKIX public key
//   - keyless identities carry an identity and an issuer and no key material
//
// # Key identifiers
//
// KeyID derives the identifier of a key as the SHA-256 of the canonical JSON
// encoding of its public parts. Private material never contributes to the
// identifier, so a key loaded from a private key file has the same identifier
// as the public descriptor recorded in metadata.
//
// # Signing
//
// NewSignerVerifier dispatches on the key type to the securesystemslib
// signer implementations. Signatures are produced over the canonical JSON
// encoding of the signed portion of a role, see CanonicalJSON.
//
//	key, err := cryptoutils.LoadPrivateKey(pemBytes)
//	if err != nil {
//	    return err
//	}
//	sv, err := cryptoutils.NewSignerVerifier(key)
//	if err != nil {
//	    return err
//	}
//	sig, err := sv.Sign(ctx, payload)
package cryptoutils
