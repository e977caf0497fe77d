package flags

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/ruteri/trustroot-signer/common"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:     logDebug,
		JSON:      logJSON,
		Verbosity: cCtx.Count(VerboseFlag.Name),
		Service:   logService,
		Version:   common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// Push reports whether the event branch should be pushed.
func Push(cCtx *cli.Context) bool {
	return cCtx.Bool(PushFlag.Name) && !cCtx.Bool(NoPushFlag.Name)
}

var PushFlag = &cli.BoolFlag{
	Name:  "push",
	Value: true,
	Usage: "push the signing event branch to the push remote",
}
var NoPushFlag = &cli.BoolFlag{
	Name:  "no-push",
	Value: false,
	Usage: "create a local branch instead of pushing",
}

var ConfigFlag = &cli.StringFlag{
	Name:  "config",
	Usage: "path to the signer settings file, defaults to .trustroot-sign.yaml in the repository root",
}
var MetadataDirFlag = &cli.StringFlag{
	Name:  "metadata-dir",
	Value: "metadata",
	Usage: "metadata directory relative to the repository root",
}

var verbosity int

var VerboseFlag = &cli.BoolFlag{
	Name:    "verbose",
	Aliases: []string{"v"},
	Count:   &verbosity,
	Usage:   "increase log verbosity, repeat for debug output",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "trustroot",
	Usage: "add 'service' tag to logs",
}

var CommonFlags = []cli.Flag{
	VerboseFlag,
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	ConfigFlag,
	MetadataDirFlag,
}

// EventFlags also accept -v so that it can follow the command name.
var EventFlags = []cli.Flag{
	PushFlag,
	NoPushFlag,
	VerboseFlag,
}
