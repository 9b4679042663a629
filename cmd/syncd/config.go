package main

import (
	configlibsql "schoolsync-backend/lib/configutil/libsql"
)

type PortalConfig struct {
	LoginUrl    string `json:"login_url"`
	ScheduleUrl string `json:"schedule_url"`
	// base url of the report export endpoints, student-list
	// reconciliation is skipped when unset
	ExportUrl  string `json:"export_url"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	ChromePath string `json:"chrome_path"`
	// the daemon can't answer an interactive verification prompt, so
	// it runs headless and relies on the session staying trusted
	Headless bool `json:"headless"`
}

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	Recipients   []string `json:"recipients"`
}

type SyncdConfig struct {
	Database configlibsql.Struct `json:"database"`
	Portal   PortalConfig        `json:"portal"`
	Smtp     SmtpConfig          `json:"smtp"`
	// hours between scheduled runs, 24 when unset
	IntervalHours int     `json:"interval_hours"`
	Port          int     `json:"port"`
	Threshold     float64 `json:"threshold"`
	Verbose       bool    `json:"verbose"`
}
