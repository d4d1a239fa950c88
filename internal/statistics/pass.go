package statistics

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sunbk201/xlink/internal/rewrite"
)

type PassThroughRecordList struct {
	recordAddChan chan *PassThroughRecord
	records       map[string]*PassThroughRecord
	mu            sync.RWMutex
	dumpFile      string
}

type PassThroughRecord struct {
	Reason string `json:"reason"`
	Host   string `json:"host"`
	URL    string `json:"url"`
	Count  int    `json:"count"`
}

func NewPassThroughRecordList(dumpFile string) *PassThroughRecordList {
	return &PassThroughRecordList{
		recordAddChan: make(chan *PassThroughRecord, 100),
		records:       make(map[string]*PassThroughRecord, 16),
		mu:            sync.RWMutex{},
		dumpFile:      dumpFile,
	}
}

func (l *PassThroughRecordList) Run(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case record := <-l.recordAddChan:
				l.Add(record)
			case <-ticker.C:
				l.Dump()
			case <-ctx.Done():
				l.Dump()
				return
			}
		}
	}()
}

func (l *PassThroughRecordList) AddRecord(record *PassThroughRecord) {
	select {
	case l.recordAddChan <- record:
	default:
		slog.Debug("Pass record dropped", slog.String("reason", record.Reason))
	}
}

// Add counts record per reason and host. Hosts outside the source set are
// folded into "*" so arbitrary clipboard text does not grow the map.
func (l *PassThroughRecordList) Add(record *PassThroughRecord) {
	host := record.Host
	if record.Reason == string(rewrite.ReasonOutOfScope) || record.Reason == string(rewrite.ReasonUnparseable) {
		host = "*"
	}
	key := record.Reason + " " + host

	l.mu.Lock()
	defer l.mu.Unlock()

	if r, exists := l.records[key]; exists {
		r.Count++
		r.URL = record.URL
	} else {
		l.records[key] = &PassThroughRecord{
			Reason: record.Reason,
			Host:   host,
			URL:    record.URL,
			Count:  1,
		}
	}
}

func (l *PassThroughRecordList) Records() []PassThroughRecord {
	l.mu.RLock()
	out := make([]PassThroughRecord, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, *r)
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason+out[i].Host < out[j].Reason+out[j].Host
	})
	return out
}

func (l *PassThroughRecordList) Dump() {
	f, err := os.Create(l.dumpFile)
	if err != nil {
		slog.Error("os.Create", slog.Any("error", err))
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("os.File.Close", slog.Any("error", err))
		}
	}()

	records := l.Records()

	w := bufio.NewWriter(f)
	defer func() {
		if err := w.Flush(); err != nil {
			slog.Error("bufio.Writer.Flush", slog.Any("error", err))
		}
	}()

	for _, record := range records {
		_, err := fmt.Fprintf(w, "%s %s %d %s\n",
			record.Reason, record.Host, record.Count, record.URL)
		if err != nil {
			slog.Error("Dump fmt.Fprintf", slog.Any("error", err))
		}
	}
}
