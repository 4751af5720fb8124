package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codescan-io/codescan/internal/config"
	"github.com/codescan-io/codescan/internal/logging"
	"github.com/codescan-io/codescan/internal/output"
	"github.com/codescan-io/codescan/internal/qualitygate"
	"github.com/codescan-io/codescan/internal/scanner"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	cfgFile   string
)

var errQualityGateFailed = errors.New("quality gate failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "codescan",
		Short: "Run a CodeScan/SonarQube analysis and wait for the quality gate",
		Long: `codescan runs the sonar-scanner against the current project, streams its
output, and then waits for the server to process the analysis report and
evaluate the project's quality gate.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Init(viper.GetViper(), cfgFile)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.config/codescan/config.yaml)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for automation)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] [-- -Dsonar.<property>=<value> ... -X<jvm option>]",
		Short: "Run the scanner and report the quality gate",
		Long: `Run the sonar-scanner and, once it succeeds, poll the server until the
background task is done and print the quality gate status.

Arguments after -- are passed to the scanner: -D properties as scanner
properties, -X<option> as JVM options and a bare -X as the scanner debug switch.`,
		Example: `  codescan run --token <token> --projectkey my-project-key --organization my-org-key
  codescan run --token <token> --projectkey my-project-key -- -Dsonar.verbose=true -Xmx2g`,
		RunE: runScan,
	}

	flags := cmd.Flags()
	flags.StringP("server", "s", "", "Server URL (default: "+scanner.DefaultServerURL+")")
	flags.StringP("organization", "o", "", "Organization key")
	flags.StringP("projectkey", "k", "", "Project key")
	flags.StringP("token", "t", "", "Authentication token")
	flags.StringP("username", "u", "", "Username")
	flags.StringP("password", "p", "", "Password")
	flags.String("javahome", "", "Java home used to run the scanner jar (default: JAVA_HOME)")
	flags.String("scanner-jar", "", "Path to sonar-scanner-cli jar")
	flags.String("scanner", "", "Path to a sonar-scanner executable, used instead of java -jar")
	flags.String("working-dir", "", "Scanner working directory (default: <user cache>/codescan/sonarworker)")
	flags.Bool("noqualitygate", false, "Do not wait for the quality gate")
	flags.Bool("nofail", false, "Do not fail when the scan or the quality gate fails")
	flags.Int("qgtimeout", 0, "Seconds to wait for the quality gate (default: 300)")

	viper.BindPFlag("server.url", flags.Lookup("server"))
	viper.BindPFlag("server.organization", flags.Lookup("organization"))
	viper.BindPFlag("server.project_key", flags.Lookup("projectkey"))
	viper.BindPFlag("auth.token", flags.Lookup("token"))
	viper.BindPFlag("auth.username", flags.Lookup("username"))
	viper.BindPFlag("auth.password", flags.Lookup("password"))
	viper.BindPFlag("scanner.java_home", flags.Lookup("javahome"))
	viper.BindPFlag("scanner.jar", flags.Lookup("scanner-jar"))
	viper.BindPFlag("scanner.path", flags.Lookup("scanner"))
	viper.BindPFlag("scanner.working_dir", flags.Lookup("working-dir"))
	viper.BindPFlag("qualitygate.disabled", flags.Lookup("noqualitygate"))
	viper.BindPFlag("qualitygate.timeout", flags.Lookup("qgtimeout"))
	viper.BindPFlag("nofail", flags.Lookup("nofail"))

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	if err := cfg.Validate(); err != nil {
		return err
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	log := logging.New(errOut, verbose, quiet)

	plan, err := scanner.BuildArgs(cfg.ArgsConfig(), args)
	if err != nil {
		return err
	}
	if plan.Anonymous {
		log.Info("No --token specified. This will probably fail")
	}

	if err := os.MkdirAll(plan.Invocation.WorkDir, 0755); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}

	client := qualitygate.NewClient(cmd.Context(), plan.Credentials)
	poller := qualitygate.NewPoller(client, cfg.GetPollInterval(), log)

	// keep stdout clean for the JSON document
	scanOut := out
	if jsonOutput {
		scanOut = errOut
	}
	launcher := scanner.NewLauncher(scanOut, errOut, poller, log, cfg.Options())

	result, err := launcher.Launch(cmd.Context(), plan.Invocation)
	if err != nil {
		var exitErr *scanner.ExitError
		if !errors.As(err, &exitErr) {
			return err
		}
	}

	if jsonOutput {
		if perr := output.PrintJSON(out, result); perr != nil {
			return perr
		}
	} else if !quiet || result.QualityGate != nil {
		output.PrintTable(out, result)
	}

	if err != nil {
		return err
	}
	if result.QualityGate != nil && !result.QualityGate.Passed() && !cfg.NoFail {
		return errQualityGateFailed
	}
	return nil
}

// exitCode forwards the scanner's own exit code, anything else is 1.
func exitCode(err error) int {
	var exitErr *scanner.ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "codescan version %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Build time: %s\n", BuildTime)
		},
	}
}
