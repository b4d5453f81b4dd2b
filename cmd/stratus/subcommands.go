package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stratus-dev/stratus/internal/cloud/aws"
	"github.com/stratus-dev/stratus/internal/engine"
	"github.com/stratus-dev/stratus/internal/journal"
	"github.com/stratus-dev/stratus/internal/spec"
	sshx "github.com/stratus-dev/stratus/internal/ssh"
)

// Load the specification named by --spec
func loadSpec(cmd *cobra.Command) (*spec.Specification, error) {
	path, _ := cmd.Flags().GetString("spec")
	return spec.Load(path)
}

// Build the engine from --region and --profile (spec profile as fallback)
func newEngine(cmd *cobra.Command, s *spec.Specification) (*engine.Engine, error) {
	region, _ := cmd.Flags().GetString("region")
	profile, _ := cmd.Flags().GetString("profile")
	if profile == "" {
		profile = s.Profile
	}
	gw, err := aws.New(cmd.Context(), region, profile)
	if err != nil {
		return nil, err
	}
	return engine.New(gw), nil
}

// Open the run journal; a journal failure degrades to logging, never aborts.
func openJournal(cmd *cobra.Command) *journal.Journal {
	path, _ := cmd.Flags().GetString("journal")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Warn().Err(err).Msg("cannot resolve home dir; run journal disabled")
			return nil
		}
		path = filepath.Join(home, ".stratus", "journal.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		log.Warn().Err(err).Msg("cannot create journal dir; run journal disabled")
		return nil
	}
	j, err := journal.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("cannot open journal; run journal disabled")
		return nil
	}
	return j
}

func manifestResources(m *engine.Manifest) []journal.Resource {
	var out []journal.Resource
	for _, id := range m.InstanceIDs {
		out = append(out, journal.Resource{Kind: "instance", ID: id})
	}
	for _, id := range m.VolumeIDs {
		out = append(out, journal.Resource{Kind: "volume", ID: id})
	}
	for _, name := range m.AlarmNames {
		out = append(out, journal.Resource{Kind: "alarm", ID: name})
	}
	return out
}

// Validate the specification without touching AWS
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the specification file",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSpec(cmd)
			if err != nil {
				return err
			}
			errs := spec.ValidateAll(s)
			if len(errs) == 0 {
				fmt.Printf("specification valid: %d instance(s)\n", len(s.Instances))
				return nil
			}
			for _, e := range errs {
				fmt.Fprintln(os.Stderr, e)
			}
			return fmt.Errorf("specification invalid: %d error(s)", len(errs))
		},
	}
}

// Provision everything the specification declares
func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Provision the declared instances, volumes and alarms",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSpec(cmd)
			if err != nil {
				return err
			}
			if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
				return printPlan(s)
			}
			e, err := newEngine(cmd, s)
			if err != nil {
				return err
			}

			j := openJournal(cmd)
			runID := ""
			if j != nil {
				defer j.Close()
				if runID, err = j.Begin(cmd.Context(), "create"); err != nil {
					log.Warn().Err(err).Msg("journal write failed")
				}
			}

			res, err := e.Provision(cmd.Context(), s)
			if err != nil {
				recordFailure(cmd, j, runID, err)
				return err
			}
			if j != nil && runID != "" {
				outcome := journal.OutcomeProvisioned
				if res.AlreadyProvisioned {
					outcome = journal.OutcomeSkipped
				}
				if err := j.Finish(cmd.Context(), runID, outcome, nil, manifestResources(res.Manifest)); err != nil {
					log.Warn().Err(err).Msg("journal write failed")
				}
			}

			if res.AlreadyProvisioned {
				fmt.Println("existing instances found; nothing created")
			}
			printConnections(res.Connections)
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "print the provisioning plan without calling AWS")
	return cmd
}

func recordFailure(cmd *cobra.Command, j *journal.Journal, runID string, err error) {
	if j == nil || runID == "" {
		return
	}
	outcome := journal.OutcomeFailed
	var resources []journal.Resource
	var perr *engine.ProvisionError
	if errors.As(err, &perr) {
		outcome = journal.OutcomeRolledBack
		resources = manifestResources(perr.Manifest)
	}
	if jerr := j.Finish(cmd.Context(), runID, outcome, err, resources); jerr != nil {
		log.Warn().Err(jerr).Msg("journal write failed")
	}
}

func printPlan(s *spec.Specification) error {
	if errs := spec.ValidateAll(s); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		return fmt.Errorf("specification invalid: %d error(s)", len(errs))
	}
	for i := range s.Instances {
		in := &s.Instances[i]
		fmt.Printf("instance %s: %s %s (%s)\n", in.Name, in.InstanceType, in.ImageID, in.MarketTypeOrDefault())
		for _, v := range in.Volumes {
			fmt.Printf("  volume %dGB %s at %s", v.SizeGB, v.TypeOrDefault(), v.DeviceOrDefault())
			if v.MountPoint != "" {
				fmt.Printf(" mounted on %s (%s)", v.MountPoint, v.FilesystemOrDefault())
			}
			fmt.Println()
		}
		if in.IdleShutdown != nil {
			fmt.Printf("  alarm %s: CPU < %.1f%% for %dm -> %s\n",
				engine.AlarmName(in.Name), *in.IdleShutdown.CPUThreshold,
				in.IdleShutdown.EvaluationMinutes, in.IdleShutdown.ActionOrDefault())
		}
	}
	fmt.Println("dry run: nothing created")
	return nil
}

func printConnections(conns []engine.ConnectionInfo) {
	for _, c := range conns {
		fmt.Printf("%s\t%s\t%s\t%s\t%s\n", c.Name, c.ID, c.State, c.PublicIP, c.PublicDNS)
	}
}

// Tear down everything the specification declares
func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Terminate the declared instances and delete their alarms",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSpec(cmd)
			if err != nil {
				return err
			}
			if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
				if errs := spec.ValidateAll(s); len(errs) > 0 {
					for _, e := range errs {
						fmt.Fprintln(os.Stderr, e)
					}
					return fmt.Errorf("specification invalid: %d error(s)", len(errs))
				}
				for i := range s.Instances {
					in := &s.Instances[i]
					fmt.Printf("would terminate instances named %s\n", in.Name)
					if in.IdleShutdown != nil {
						fmt.Printf("would delete alarm %s\n", engine.AlarmName(in.Name))
					}
				}
				fmt.Println("dry run: nothing deleted")
				return nil
			}
			e, err := newEngine(cmd, s)
			if err != nil {
				return err
			}

			j := openJournal(cmd)
			runID := ""
			if j != nil {
				defer j.Close()
				if runID, err = j.Begin(cmd.Context(), "delete"); err != nil {
					log.Warn().Err(err).Msg("journal write failed")
				}
			}

			if err := e.DeleteDeclared(cmd.Context(), s); err != nil {
				if j != nil && runID != "" {
					if jerr := j.Finish(cmd.Context(), runID, journal.OutcomeFailed, err, nil); jerr != nil {
						log.Warn().Err(jerr).Msg("journal write failed")
					}
				}
				return err
			}
			if j != nil && runID != "" {
				if jerr := j.Finish(cmd.Context(), runID, journal.OutcomeDeleted, nil, nil); jerr != nil {
					log.Warn().Err(jerr).Msg("journal write failed")
				}
			}
			fmt.Println("deletion completed")
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "print the teardown plan without calling AWS")
	return cmd
}

// Show bootstrap execution logs scraped from the console output
func newMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Show bootstrap execution logs for the declared instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSpec(cmd)
			if err != nil {
				return err
			}
			e, err := newEngine(cmd, s)
			if err != nil {
				return err
			}
			logs := e.BootstrapLogs(cmd.Context(), s)
			if len(logs) == 0 {
				fmt.Println("no instances with a bootstrap script declared")
				return nil
			}
			for name, text := range logs {
				fmt.Printf("===== %s =====\n%s\n\n", name, text)
			}
			return nil
		},
	}
}

// Show past runs from the journal
func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past provisioning and teardown runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			j := openJournal(cmd)
			if j == nil {
				return errors.New("run journal unavailable")
			}
			defer j.Close()

			runs, err := j.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no recorded runs")
				return nil
			}
			for _, r := range runs {
				fmt.Printf("%s\t%s\t%s\t%s\n", r.StartedAt.Format(time.RFC3339), r.Action, r.Outcome, r.ID)
				for _, res := range r.Resources {
					fmt.Printf("  %s\t%s\n", res.Kind, res.ID)
				}
				if r.Error != "" {
					fmt.Printf("  error: %s\n", r.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum runs to show")
	return cmd
}

// Resolve one declared instance to a live public address
func resolveAddress(cmd *cobra.Command, s *spec.Specification, name string) (engine.ConnectionInfo, error) {
	e, err := newEngine(cmd, s)
	if err != nil {
		return engine.ConnectionInfo{}, err
	}
	conns, err := e.Connections(cmd.Context(), s)
	if err != nil {
		return engine.ConnectionInfo{}, err
	}
	if name == "" && len(conns) > 0 {
		return conns[0], nil
	}
	for _, c := range conns {
		if c.Name == name {
			return c, nil
		}
	}
	return engine.ConnectionInfo{}, fmt.Errorf("no running instance named %q", name)
}

func sshClient(cmd *cobra.Command, conn engine.ConnectionInfo) (*sshx.Client, error) {
	keyPath, _ := cmd.Flags().GetString("key")
	khPath, _ := cmd.Flags().GetString("known-hosts")
	user, _ := cmd.Flags().GetString("user")

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	if keyPath == "" {
		keyPath = filepath.Join(home, ".ssh", "id_ed25519")
	}
	if khPath == "" {
		khPath = filepath.Join(home, ".ssh", "known_hosts")
	}
	signer, err := sshx.LoadSigner(keyPath)
	if err != nil {
		return nil, err
	}
	kh, err := sshx.KnownHostsCallback(khPath)
	if err != nil {
		return nil, err
	}
	host := conn.PublicIP
	if host == "" {
		host = conn.PublicDNS
	}
	if host == "" {
		return nil, fmt.Errorf("instance %s has no public address", conn.Name)
	}
	return &sshx.Client{
		Host:       host,
		User:       user,
		Signer:     signer,
		KnownHosts: kh,
		Timeout:    15 * time.Second,
		Retries:    3,
	}, nil
}

// Run a command on a declared instance over SSH
func newSSHCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ssh [command...]",
		Short: "Run a command on a declared instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSpec(cmd)
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")
			conn, err := resolveAddress(cmd, s, name)
			if err != nil {
				return err
			}
			c, err := sshClient(cmd, conn)
			if err != nil {
				return err
			}
			command := "uname -a"
			if len(args) > 0 {
				command = strings.Join(args, " ")
			}
			stdout, stderr, err := c.Run(cmd.Context(), command)
			if stdout != "" {
				fmt.Print(stdout)
			}
			if stderr != "" {
				fmt.Fprint(os.Stderr, stderr)
			}
			return err
		},
	}
	cmd.Flags().String("name", "", "instance name (defaults to the first declared)")
	cmd.Flags().String("user", sshx.DefaultUser, "SSH user")
	cmd.Flags().String("key", "", "private key path (default ~/.ssh/id_ed25519)")
	cmd.Flags().String("known-hosts", "", "known_hosts path (default ~/.ssh/known_hosts)")
	return cmd
}

// Copy files to/from a declared instance
func newScpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scp",
		Short: "Transfer files to or from a declared instance using SFTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSpec(cmd)
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")
			push, _ := cmd.Flags().GetStringSlice("push")
			pull, _ := cmd.Flags().GetStringSlice("pull")
			conn, err := resolveAddress(cmd, s, name)
			if err != nil {
				return err
			}
			c, err := sshClient(cmd, conn)
			if err != nil {
				return err
			}
			cli, err := c.Dial(cmd.Context())
			if err != nil {
				return err
			}
			defer cli.Close()
			for _, pair := range push {
				parts := strings.SplitN(pair, ":", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid --push spec: %s", pair)
				}
				if err := sshx.PushFile(cli, parts[0], parts[1]); err != nil {
					return err
				}
			}
			for _, pair := range pull {
				parts := strings.SplitN(pair, ":", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid --pull spec: %s", pair)
				}
				if err := sshx.PullFile(cli, parts[0], parts[1]); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().String("name", "", "instance name (defaults to the first declared)")
	cmd.Flags().String("user", sshx.DefaultUser, "SSH user")
	cmd.Flags().String("key", "", "private key path (default ~/.ssh/id_ed25519)")
	cmd.Flags().String("known-hosts", "", "known_hosts path (default ~/.ssh/known_hosts)")
	cmd.Flags().StringSlice("push", nil, "local:remote file pairs to upload")
	cmd.Flags().StringSlice("pull", nil, "remote:local file pairs to download")
	return cmd
}
