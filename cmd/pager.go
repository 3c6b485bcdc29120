package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-isatty"
)

// output writes content through a pager when stdout is a terminal.
func output(content string, noPager bool) error {
	if noPager || !isTerminal() {
		fmt.Print(content)
		return nil
	}
	return displayWithPager(content)
}

func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func displayWithPager(content string) error {
	pagerCmd := os.Getenv("PAGER")
	if pagerCmd == "" {
		for _, pager := range []string{"less", "more"} {
			if _, err := exec.LookPath(pager); err == nil {
				pagerCmd = pager
				break
			}
		}
	}

	if pagerCmd == "" {
		fmt.Print(content)
		return nil
	}

	args := []string{}
	if strings.Contains(pagerCmd, "less") {
		args = []string{"-R", "-S", "-F", "-X"}
	}

	cmd := exec.Command(pagerCmd, args...)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
