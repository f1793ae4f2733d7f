package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kamnsolar/field_capture/config"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var yesFlag = &cli.BoolFlag{
	Name:    "yes",
	Aliases: []string{"y"},
	Usage:   "skip the confirmation prompt",
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		config.GetLogger().WithFields(logrus.Fields{"field": "fieldkit"}).Error(err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "fieldkit",
		Usage: "register solar customers and upload inspection photos",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Usage:   "survey backend base URL",
				EnvVars: []string{"API_BASE_URL"},
				Value:   config.DefaultAPIBaseURL,
			},
		},
		Commands: []*cli.Command{
			technicianCommand(),
			adminCommand(),
		},
	}
}

// confirm asks on the app's reader unless --yes was given.
func confirm(c *cli.Context, prompt string) bool {
	if c.Bool("yes") {
		return true
	}
	return askYesNo(c.App.Reader, c.App.Writer, prompt)
}

func askYesNo(r io.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

var errAborted = cli.Exit("aborted", 1)
