package cliconfig

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/wirdbot/wirdbot/internal/config"
	"github.com/wirdbot/wirdbot/internal/provider"
)

// DoctorStatus is the outcome of a single doctor check.
type DoctorStatus string

const (
	DoctorPass DoctorStatus = "pass"
	DoctorWarn DoctorStatus = "warn"
	DoctorFail DoctorStatus = "fail"
)

// DoctorCheck is one named health check with its outcome.
type DoctorCheck struct {
	Name    string
	Status  DoctorStatus
	Message string
}

// DoctorReport aggregates all doctor checks.
type DoctorReport struct {
	Checks []DoctorCheck
}

// HasFailures reports whether any check failed outright.
func (r DoctorReport) HasFailures() bool {
	for _, c := range r.Checks {
		if c.Status == DoctorFail {
			return true
		}
	}
	return false
}

// dialTimeout is swapped out in tests.
var dialTimeout = net.DialTimeout

// RunDoctor inspects the local installation and reports what would keep
// wirdbot serve from running properly.
func RunDoctor() (DoctorReport, error) {
	var report DoctorReport
	add := func(name string, status DoctorStatus, msg string) {
		report.Checks = append(report.Checks, DoctorCheck{Name: name, Status: status, Message: msg})
	}

	path, err := config.ConfigPath()
	if err != nil {
		add("config_file", DoctorFail, fmt.Sprintf("cannot resolve config path: %v", err))
		return report, nil
	}
	if info, statErr := os.Stat(path); os.IsNotExist(statErr) {
		add("config_file", DoctorWarn, fmt.Sprintf("%s not found, defaults and environment apply", path))
	} else if statErr != nil {
		add("config_file", DoctorFail, statErr.Error())
	} else {
		add("config_file", DoctorPass, path)
		if mode := info.Mode().Perm(); mode&0077 != 0 {
			add("config_permissions", DoctorWarn, fmt.Sprintf("%s is mode %04o, tighten with chmod 600", path, mode))
		} else {
			add("config_permissions", DoctorPass, "file is private")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		add("config_load", DoctorFail, err.Error())
		return report, nil
	}
	add("config_load", DoctorPass, "configuration parses")

	if strings.TrimSpace(cfg.Discord.Token) == "" {
		add("discord_token", DoctorFail, "discord.token is empty, set it with: wirdbot config set discord.token <token>")
	} else {
		add("discord_token", DoctorPass, "token configured")
	}
	if strings.TrimSpace(cfg.Discord.OwnerID) == "" {
		add("owner_id", DoctorWarn, "discord.ownerId is empty, owner-only tools stay locked")
	} else {
		add("owner_id", DoctorPass, cfg.Discord.OwnerID)
	}

	checkModel := func(name, route string) {
		if _, _, resolveErr := provider.Resolve(cfg, route); resolveErr != nil {
			add(name, DoctorFail, resolveErr.Error())
			return
		}
		add(name, DoctorPass, route)
	}
	checkModel("model_simple", cfg.Model.Simple)
	checkModel("model_complex", cfg.Model.Complex)

	if info, statErr := os.Stat(cfg.Store.Path); os.IsNotExist(statErr) {
		add("store", DoctorWarn, fmt.Sprintf("%s not created yet, first run creates it", cfg.Store.Path))
	} else if statErr != nil {
		add("store", DoctorFail, statErr.Error())
	} else if info.IsDir() {
		add("store", DoctorFail, fmt.Sprintf("%s is a directory, expected a database file", cfg.Store.Path))
	} else {
		add("store", DoctorPass, cfg.Store.Path)
	}

	if strings.TrimSpace(cfg.Agent.Workspace) == "" {
		add("workspace", DoctorWarn, "agent.workspace is empty, sandbox directories land in the working directory")
	} else {
		add("workspace", DoctorPass, cfg.Agent.Workspace)
	}

	if u, parseErr := url.Parse(cfg.Quran.APIBase); parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("quran_api", DoctorFail, fmt.Sprintf("quran.apiBase %q is not an http(s) URL", cfg.Quran.APIBase))
	} else {
		add("quran_api", DoctorPass, cfg.Quran.APIBase)
	}

	if !cfg.Scheduler.Enabled {
		add("scheduler", DoctorPass, "disabled")
	} else if cfg.Scheduler.TickInterval > time.Minute {
		add("scheduler", DoctorWarn, fmt.Sprintf("tick interval %s can skip minute slots, use 1m or less", cfg.Scheduler.TickInterval))
	} else {
		add("scheduler", DoctorPass, fmt.Sprintf("enabled, tick %s", cfg.Scheduler.TickInterval))
	}

	report.Checks = append(report.Checks, checkEvents(cfg))

	return report, nil
}

func checkEvents(cfg *config.Config) DoctorCheck {
	if !cfg.Events.Enabled {
		return DoctorCheck{Name: "events", Status: DoctorPass, Message: "disabled"}
	}
	brokers := splitBrokers(cfg.Events.Brokers)
	if len(brokers) == 0 {
		return DoctorCheck{Name: "events", Status: DoctorFail, Message: "events.enabled is true but events.brokers is empty"}
	}
	for _, addr := range brokers {
		conn, err := dialTimeout("tcp", addr, 2*time.Second)
		if err != nil {
			continue
		}
		conn.Close()
		return DoctorCheck{Name: "events", Status: DoctorPass, Message: fmt.Sprintf("broker %s reachable", addr)}
	}
	return DoctorCheck{Name: "events", Status: DoctorWarn, Message: fmt.Sprintf("no broker reachable at %s", cfg.Events.Brokers)}
}

func splitBrokers(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
