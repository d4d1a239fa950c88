package statistics

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/sunbk201/xlink/internal/rewrite"
)

const (
	RewriteStatsFile = "rewrite_stats"
	PassStatsFile    = "pass_stats"

	DefaultDumpInterval = 5 * time.Second
)

// Recorder keeps counters of rewritten and passed-through links.
type Recorder struct {
	RewriteRecordList     *RewriteRecordList
	PassThroughRecordList *PassThroughRecordList
}

func New(dir string) *Recorder {
	return &Recorder{
		RewriteRecordList:     NewRewriteRecordList(filepath.Join(dir, RewriteStatsFile)),
		PassThroughRecordList: NewPassThroughRecordList(filepath.Join(dir, PassStatsFile)),
	}
}

// Run starts both record lists. They dump every interval and once more when
// ctx is done.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultDumpInterval
	}
	r.RewriteRecordList.Run(ctx, interval)
	r.PassThroughRecordList.Run(ctx, interval)
}

// Record files o under the list it belongs to. It never blocks.
func (r *Recorder) Record(o rewrite.Outcome) {
	if r == nil {
		return
	}
	host := hostOf(o.Input)
	if o.Changed() {
		r.RewriteRecordList.AddRecord(&RewriteRecord{
			Host:      host,
			Mode:      o.Mode.String(),
			Original:  o.Input,
			Rewritten: o.Output,
		})
		return
	}
	r.PassThroughRecordList.AddRecord(&PassThroughRecord{
		Reason: string(o.Reason),
		Host:   host,
		URL:    o.Input,
	})
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "-"
	}
	return strings.ToLower(u.Hostname())
}
