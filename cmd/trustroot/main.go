package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/trustroot-signer/cmd/flags"
	"github.com/ruteri/trustroot-signer/common"
	"github.com/ruteri/trustroot-signer/delegation"
	"github.com/ruteri/trustroot-signer/kms"
	"github.com/ruteri/trustroot-signer/prompt"
	"github.com/ruteri/trustroot-signer/signerconfig"
	"github.com/ruteri/trustroot-signer/storage"
	"github.com/ruteri/trustroot-signer/vcs"
	"github.com/urfave/cli/v2"
)

type runFunc func(ctx context.Context, o *delegation.Orchestrator, opts delegation.Options) error

func main() {
	app := &cli.App{
		Name:                   "trustroot",
		Usage:                  "Manage trust root delegations and take part in signing events",
		Version:                common.Version,
		Flags:                  flags.CommonFlags,
		UseShortOptionHandling: true,
		Commands: []*cli.Command{
			{
				Name:      "delegate",
				Usage:     "Create the trust root or modify the delegation of a role",
				ArgsUsage: "EVENT [ROLE]",
				Flags:     flags.EventFlags,
				Action: func(cCtx *cli.Context) error {
					return runEvent(cCtx, cCtx.Args().Get(1), func(ctx context.Context, o *delegation.Orchestrator, opts delegation.Options) error {
						return o.Delegate(ctx, opts)
					})
				},
			},
			{
				Name:      "sign",
				Usage:     "Accept invites and sign the roles waiting for your signature",
				ArgsUsage: "EVENT",
				Flags:     flags.EventFlags,
				Action: func(cCtx *cli.Context) error {
					return runEvent(cCtx, "", func(ctx context.Context, o *delegation.Orchestrator, opts delegation.Options) error {
						return o.Sign(ctx, opts)
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// runEvent opens the signing event named by the first argument and runs fn
// against the metadata of the event branch.
func runEvent(cCtx *cli.Context, role string, fn runFunc) error {
	logger := flags.SetupLogger(cCtx)
	ctx := cCtx.Context

	event := cCtx.Args().First()
	if event == "" {
		return cli.Exit("missing EVENT argument", 1)
	}

	if err := openEvent(ctx, cCtx, logger, event, role, fn); err != nil {
		logger.Error("Signing event failed", "err", err, slog.String("event", event))
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

func openEvent(ctx context.Context, cCtx *cli.Context, logger *slog.Logger, event, role string, fn runFunc) error {
	root, err := vcs.NewGit(".", logger).RepositoryRoot(ctx)
	if err != nil {
		return err
	}
	git := vcs.NewGit(root, logger)

	configPath := cCtx.String(flags.ConfigFlag.Name)
	if configPath == "" {
		configPath = filepath.Join(root, signerconfig.FileName)
	}
	cfg, err := signerconfig.Load(configPath)
	if err != nil {
		return err
	}

	metadataDir := cCtx.String(flags.MetadataDirFlag.Name)
	terminal := prompt.NewTerminal()
	opts := delegation.Options{Event: event, Role: role, Push: flags.Push(cCtx)}

	return git.WithSigningEvent(ctx, cfg.PullRemote, event, func(ctx context.Context) error {
		knownGoodDir, err := os.MkdirTemp("", "trustroot-known-good-")
		if err != nil {
			return fmt.Errorf("failed to create baseline directory: %w", err)
		}
		defer os.RemoveAll(knownGoodDir)

		if err := git.ExportTree(ctx, vcs.KnownGoodRef(cfg.PullRemote), metadataDir, knownGoodDir); err != nil {
			return err
		}

		repo := storage.NewRepository(
			storage.NewFileBackend(filepath.Join(root, metadataDir), logger),
			storage.NewFileBackend(knownGoodDir, logger),
			cfg.UserName,
			logger,
		)
		keys := kms.NewProvider(kms.ProviderConfig{
			SigningKey:   cfg.SigningKey,
			AWSRegion:    cfg.AWSRegion,
			VaultAddress: cfg.VaultAddress,
		}, terminal, logger)

		orchestrator := delegation.NewOrchestrator(delegation.Config{
			PullRemote:   cfg.PullRemote,
			PushRemote:   cfg.PushRemote,
			MetadataPath: metadataDir,
		}, repo, keys, git, terminal, logger)

		logger.Info("Opened signing event", slog.String("event", event), slog.String("user", cfg.UserName))
		return fn(ctx, orchestrator, opts)
	})
}
