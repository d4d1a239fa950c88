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
)

type RewriteRecordList struct {
	recordAddChan chan *RewriteRecord
	records       map[string]*RewriteRecord
	mu            sync.RWMutex

	dumpRecords []*RewriteRecord
	dumpFile    string
	dumpWriter  *bufio.Writer
}

type RewriteRecord struct {
	Host      string `json:"host"`
	Mode      string `json:"mode"`
	Count     int    `json:"count"`
	Original  string `json:"original"`
	Rewritten string `json:"rewritten"`
}

func NewRewriteRecordList(dumpFile string) *RewriteRecordList {
	return &RewriteRecordList{
		recordAddChan: make(chan *RewriteRecord, 100),
		records:       make(map[string]*RewriteRecord, 16),
		mu:            sync.RWMutex{},
		dumpRecords:   make([]*RewriteRecord, 0, 16),
		dumpFile:      dumpFile,
		dumpWriter:    bufio.NewWriter(nil),
	}
}

func (l *RewriteRecordList) Run(ctx context.Context, interval time.Duration) {
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

// AddRecord queues record for Run, dropping it when the queue is full.
func (l *RewriteRecordList) AddRecord(record *RewriteRecord) {
	select {
	case l.recordAddChan <- record:
	default:
		slog.Debug("Rewrite record dropped", slog.String("host", record.Host))
	}
}

func (l *RewriteRecordList) Add(record *RewriteRecord) {
	key := record.Host + " " + record.Mode

	l.mu.Lock()
	defer l.mu.Unlock()

	if r, exists := l.records[key]; exists {
		r.Count++
		r.Original = record.Original
		r.Rewritten = record.Rewritten
	} else {
		l.records[key] = &RewriteRecord{
			Host:      record.Host,
			Mode:      record.Mode,
			Count:     1,
			Original:  record.Original,
			Rewritten: record.Rewritten,
		}
	}
}

// Records returns a copy of every record, most frequent first.
func (l *RewriteRecordList) Records() []RewriteRecord {
	l.mu.RLock()
	out := make([]RewriteRecord, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, *r)
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Host+out[i].Mode < out[j].Host+out[j].Mode
	})
	return out
}

func (l *RewriteRecordList) Dump() {
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

	l.dumpRecords = l.dumpRecords[:0]
	l.mu.RLock()
	for _, record := range l.records {
		l.dumpRecords = append(l.dumpRecords, record)
	}
	l.mu.RUnlock()

	sort.SliceStable(l.dumpRecords, func(i, j int) bool {
		return l.dumpRecords[i].Count > l.dumpRecords[j].Count
	})

	l.dumpWriter.Reset(f)
	defer func() {
		if err := l.dumpWriter.Flush(); err != nil {
			slog.Error("bufio.Writer.Flush", slog.Any("error", err))
		}
	}()

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, record := range l.dumpRecords {
		_, err := fmt.Fprintf(l.dumpWriter, "%s %s %d %s -> %s\n",
			record.Host, record.Mode, record.Count, record.Original, record.Rewritten)
		if err != nil {
			slog.Error("Dump fmt.Fprintf", slog.Any("error", err))
		}
	}
}
