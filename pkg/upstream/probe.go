package upstream

import (
	"context"
	"errors"
	"time"
)

// ProbeReport describes one raw primary-query call, for troubleshooting
// credentials and media expansions.
type ProbeReport struct {
	Auth                   AuthMode  `json:"auth"`
	Query                  string    `json:"query,omitempty"`
	Status                 int       `json:"status,omitempty"`
	OK                     bool      `json:"ok"`
	RecordCount            int       `json:"recordCount"`
	MediaCount             int       `json:"mediaCount"`
	RecordsWithAttachments int       `json:"recordsWithAttachments"`
	MediaKeys              []string  `json:"mediaKeys,omitempty"`
	Error                  string    `json:"error,omitempty"`
	CheckedAt              time.Time `json:"checkedAt"`
}

// Probe runs the primary query once, without fallback or normalization.
func (c *Client) Probe(ctx context.Context) ProbeReport {
	report := ProbeReport{Auth: c.auth, CheckedAt: c.now()}
	if c.auth == AuthNone {
		report.Error = "no credentials configured"
		return report
	}

	report.Query = c.queries[0]
	env, attempt, err := c.search(ctx, report.Query)
	report.Status = attempt.Status
	if err != nil {
		var rej *RejectedError
		if errors.As(err, &rej) {
			report.Error = rej.Body
		} else {
			report.Error = err.Error()
		}
		return report
	}

	report.OK = true
	report.RecordCount = len(env.Data)
	report.MediaCount = len(env.Includes.Media)
	for _, rec := range env.Data {
		if len(rec.Attachments.MediaKeys) > 0 {
			report.RecordsWithAttachments++
		}
		report.MediaKeys = append(report.MediaKeys, rec.Attachments.MediaKeys...)
	}
	return report
}
