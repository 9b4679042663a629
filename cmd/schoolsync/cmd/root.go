package cmd

import (
	"fmt"
	"os"

	"schoolsync-backend/lib/configutil"
	configlibsql "schoolsync-backend/lib/configutil/libsql"
	"schoolsync-backend/lib/restyutil"
	"schoolsync-backend/lib/telemetry"
	"schoolsync-backend/scrapers/diario"
	linkerdb "schoolsync-backend/services/linker/db"
	resolverdb "schoolsync-backend/services/resolver/db"
	scheduledb "schoolsync-backend/services/schedule/db"
	"schoolsync-backend/services/sync"

	"github.com/spf13/cobra"
)

type PortalConfig struct {
	LoginUrl    string `json:"login_url"`
	ScheduleUrl string `json:"schedule_url"`
	// base url of the report export endpoints, student-list
	// reconciliation is skipped when unset
	ExportUrl string `json:"export_url"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	// optional path of the chrome binary
	ChromePath string `json:"chrome_path"`
}

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	Recipients   []string `json:"recipients"`
}

type Config struct {
	Database configlibsql.Struct `json:"database"`
	Portal   PortalConfig        `json:"portal"`
	Smtp     SmtpConfig          `json:"smtp"`
	// address of the sync daemon, used by `review`
	SyncdAddress string `json:"syncd_address"`
}

// Schema is everything the local store needs, every service keeps its
// tables in the same sqlite file.
func Schema() string {
	return resolverdb.Schema + "\n" + scheduledb.Schema + "\n" + linkerdb.Schema
}

var (
	configPath string
	verbose    bool
	threshold  float64
	timeout    int

	config  Config
	service sync.Service
)

var rootCmd = &cobra.Command{
	Use:   "schoolsync",
	Short: "schoolsync synchronizes academic records from the school platform into the local store.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		var err error
		config, err = configutil.ReadConfig[Config](configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}

		database, err := config.Database.OpenDB(Schema())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}

		if verbose {
			diario.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput("schoolsync"))
		}

		service = sync.NewService(database, sync.Options{
			Threshold:     threshold,
			ExportBaseUrl: config.Portal.ExportUrl,
			Smtp: sync.SmtpConfig{
				Server:       config.Smtp.Server,
				Port:         config.Smtp.Port,
				EmailAddress: config.Smtp.EmailAddress,
				Password:     config.Smtp.Password,
				Recipients:   config.Smtp.Recipients,
			},
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "path of the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().Float64Var(&threshold, "threshold", 0.85, "similarity above which matches are confirmed without review")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 120, "seconds to wait for the human verification step")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
