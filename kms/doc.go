// Package kms provides the key provider of the signing tool.
//
// The provider resolves three kinds of key material:
//
// # Online keys
//
// Online keys sign the timestamp and snapshot roles from automation. They are
// never used by this tool, only their public part and a locator telling the
// online signer how to reach them are recorded:
//
//   - Keyless identities bound to automation workflows, locator "sigstore:"
//   - AWS KMS asymmetric keys, locator "awskms:<key arn>"
//   - HashiCorp Vault transit keys, locator "hashivault:<mount>/<name>"
//   - A fixed ed25519 test key, locator "envvar:LOCAL_TESTING_KEY"
//
// Cloud key resolution failures are reported as interfaces.ErrKeyResolution
// and are never retried.
//
// # Offline signing keys
//
// The acting signer's key is loaded from the private key file configured in
// the signer settings (OpenSSH or PKCS#8 PEM). KeySigner wraps the loaded key
// as an interfaces.SigningCapability.
//
//	provider := kms.NewProvider(kms.ProviderConfig{SigningKey: "~/.ssh/id_ed25519"}, term, log)
//	signer, err := provider.RequestSigningCapability(ctx)
package kms
