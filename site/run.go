package site

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"mksite/config"
	"mksite/state"
)

// Run is action of build subcommand.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("site")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input directory has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		return errors.New("no output directory has been specified")
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.Overwrite = cmd.Bool("overwrite")

	var confirm func(string) bool
	if config.IsInteractive(os.Stdin) {
		confirm = Prompter(os.Stdin, os.Stderr)
	}
	if err := CheckDestination(dst, env.Overwrite, confirm); err != nil {
		return err
	}

	if n := cmd.Int("workers"); n > 0 {
		env.Cfg.Site.Workers = int(n)
	}

	b, err := New(&env.Cfg.Site, env.Log, WithReport(env.Rpt))
	if err != nil {
		return fmt.Errorf("unable to prepare builder: %w", err)
	}
	return b.Build(ctx, src, dst)
}
