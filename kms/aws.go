package kms

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awskms "github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"github.com/ruteri/trustroot-signer/cryptoutils"
	"github.com/ruteri/trustroot-signer/interfaces"
)

// AWSImporter reads public keys of asymmetric AWS KMS signing keys.
type AWSImporter struct {
	client kmsiface.KMSAPI
	log    *slog.Logger
}

// NewAWSImporter creates an importer using the default credential chain.
// An empty region falls back to the environment configuration.
func NewAWSImporter(region string, log *slog.Logger) (*AWSImporter, error) {
	cfg := aws.Config{}
	if region != "" {
		cfg.Region = aws.String(region)
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewAWSImporterWithClient(awskms.New(sess), log), nil
}

func NewAWSImporterWithClient(client kmsiface.KMSAPI, log *slog.Logger) *AWSImporter {
	return &AWSImporter{client: client, log: log}
}

// ImportKey resolves a key id, ARN or alias to its public key and locator.
func (i *AWSImporter) ImportKey(ctx context.Context, keyID string) (string, interfaces.KeyDescriptor, error) {
	out, err := i.client.GetPublicKeyWithContext(ctx, &awskms.GetPublicKeyInput{
		KeyId: aws.String(keyID),
	})
	if err != nil {
		return "", interfaces.KeyDescriptor{}, fmt.Errorf("failed to read AWS KMS key %s: %w", keyID, err)
	}

	if usage := aws.StringValue(out.KeyUsage); usage != awskms.KeyUsageTypeSignVerify {
		return "", interfaces.KeyDescriptor{}, fmt.Errorf("AWS KMS key %s has usage %s, expected %s", keyID, usage, awskms.KeyUsageTypeSignVerify)
	}

	pub, err := cryptoutils.ParsePublicKeyDER(out.PublicKey)
	if err != nil {
		return "", interfaces.KeyDescriptor{}, err
	}
	key, err := cryptoutils.SSLibKeyFromPublicKey(pub)
	if err != nil {
		return "", interfaces.KeyDescriptor{}, err
	}

	locator := interfaces.AWSKMSScheme + ":" + aws.StringValue(out.KeyId)
	i.log.Debug("Imported AWS KMS key",
		slog.String("locator", locator),
		slog.String("keyspec", aws.StringValue(out.KeySpec)))

	return locator, interfaces.KeyDescriptor{
		KeyType:   key.KeyType,
		Scheme:    key.Scheme,
		KeyVal:    key.KeyVal,
		OnlineURI: locator,
	}, nil
}
