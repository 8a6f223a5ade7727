package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// KnownSources are the platforms the scrape API serves.
var KnownSources = []string{"seek", "indeed"}

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

func trimList(xs []string, lower bool) []string {
	seen := map[string]bool{}
	var ys []string
	for _, x := range xs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if lower {
			x = strings.ToLower(x)
		}
		key := strings.ToLower(x)
		if seen[key] {
			continue
		}
		seen[key] = true
		ys = append(ys, x)
	}
	return ys
}

func isKnownSource(s string) bool {
	for _, k := range KnownSources {
		if s == k {
			return true
		}
	}
	return false
}

// NormalizeAndValidate returns a normalized copy of cfg with the problems
// found. Errors make the config unusable; warnings do not.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	out.ScrapeAPI.Sources = trimList(out.ScrapeAPI.Sources, true)
	out.Schedule.Trades = trimList(out.Schedule.Trades, true)
	out.Schedule.Cities = trimList(out.Schedule.Cities, false)
	out.Database.Driver = strings.ToLower(strings.TrimSpace(out.Database.Driver))
	out.ScrapeAPI.BaseURL = strings.TrimRight(strings.TrimSpace(out.ScrapeAPI.BaseURL), "/")

	// app
	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	// database
	switch out.Database.Driver {
	case "", "sqlite":
		out.Database.Driver = "sqlite"
		if strings.TrimSpace(out.Database.Path) == "" {
			out.Database.Path = "jobintel.db"
		}
	case "postgres":
		if strings.TrimSpace(out.Database.URL) == "" {
			res.addErr("database.url is required when database.driver=postgres")
		}
	default:
		res.addErr("database.driver must be sqlite or postgres, got %q", out.Database.Driver)
	}

	// scrape api
	if u, err := url.Parse(out.ScrapeAPI.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		res.addErr("scrape_api.base_url must be an http(s) URL, got %q", out.ScrapeAPI.BaseURL)
	}
	if out.ScrapeAPI.Timeout <= 0 {
		res.addErr("scrape_api.timeout must be > 0")
	} else if out.ScrapeAPI.Timeout < 10*time.Second {
		res.addWarn("scrape_api.timeout is very low (%s); scrapes often take minutes.", out.ScrapeAPI.Timeout)
	}
	if len(out.ScrapeAPI.Sources) == 0 {
		res.addErr("scrape_api.sources must list at least one of %s", strings.Join(KnownSources, ", "))
	}
	for _, s := range out.ScrapeAPI.Sources {
		if !isKnownSource(s) {
			res.addErr("scrape_api.sources: unknown source %q", s)
		}
	}
	if out.ScrapeAPI.RequestsPerSecond < 0 {
		res.addErr("scrape_api.requests_per_second must be >= 0")
	} else if out.ScrapeAPI.RequestsPerSecond == 0 {
		res.addWarn("scrape_api.requests_per_second is 0; requests are not rate limited.")
	}
	if out.ScrapeAPI.Burst < 1 {
		out.ScrapeAPI.Burst = 1
	}

	// schedule
	if out.Schedule.MaxResults <= 0 {
		res.addErr("schedule.max_results must be > 0")
	}
	if out.Schedule.Retry.MaxAttempts < 0 {
		res.addErr("schedule.retry.max_attempts must be >= 0")
	}
	if out.Schedule.Retry.MaxBackoff <= 0 {
		res.addErr("schedule.retry.max_backoff must be > 0")
	}
	if out.Schedule.Enabled {
		if _, err := cron.ParseStandard(out.Schedule.Cron); err != nil {
			res.addErr("schedule.cron %q: %v", out.Schedule.Cron, err)
		}
		if _, err := time.LoadLocation(out.Schedule.Timezone); err != nil {
			res.addErr("schedule.timezone %q: %v", out.Schedule.Timezone, err)
		}
		if len(out.Schedule.Trades) == 0 || len(out.Schedule.Cities) == 0 {
			res.addErr("schedule.trades and schedule.cities must not be empty when schedule.enabled=true")
		}
		if n := len(out.Schedule.Trades) * len(out.Schedule.Cities); n > 200 {
			res.addWarn("schedule creates %d entries; the scrape API may rate limit you.", n)
		}
	}

	// sweep
	if out.Sweep.Enabled {
		if _, err := cron.ParseStandard(out.Sweep.Cron); err != nil {
			res.addErr("sweep.cron %q: %v", out.Sweep.Cron, err)
		}
		if out.Sweep.MaxAge <= 0 {
			res.addErr("sweep.max_age must be > 0 when sweep.enabled=true")
		} else if out.Sweep.MaxAge < 24*time.Hour {
			res.addWarn("sweep.max_age is %s; postings may be deactivated between scheduled runs.", out.Sweep.MaxAge)
		}
	}

	// redis
	if strings.TrimSpace(out.Redis.URL) != "" && strings.TrimSpace(out.Redis.Channel) == "" {
		out.Redis.Channel = "jobintel:events"
	}

	return out, res
}
