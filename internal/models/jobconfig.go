package models

import "time"

// JobConfig is one account's harvesting configuration. Soft-disabled
// (never deleted) once ConsecutiveFailures reaches the configured
// threshold.
type JobConfig struct {
	ID                  string      `json:"id"`
	AuthContext         AuthContext `json:"authContext"`
	Enabled             bool        `json:"enabled"`
	EnabledQueries      []string    `json:"enabledQueries"`
	ForcedUserLang      string      `json:"forcedUserLang"`
	StatInkAPIKey       string      `json:"statInkApiKey"`
	ConsecutiveFailures int         `json:"consecutiveFailures"`
	FailureNotified     bool        `json:"failureNotified"`
	LastUpdateTime      time.Time   `json:"lastUpdateTime"`
}

// CorrectUserLang normalizes the locale used for harvesting: the forced
// override defaults to the profile locale on first use, and from then
// on the override wins.
func (c *JobConfig) CorrectUserLang() {
	if c.ForcedUserLang == "" {
		c.ForcedUserLang = c.AuthContext.User.Lang
	}
	c.AuthContext.User.Lang = c.ForcedUserLang
}
