// Package storage keeps per-guild bot settings and short histories on top
// of the JSON datastore.
package storage

import (
	"time"

	"tocadiscos/datastore"
	"tocadiscos/internal/track"
)

const (
	commandHistoryLimit = 20
	trackHistoryLimit   = 12
)

type Storage struct {
	ds *datastore.DataStore
}

// CommandHistoryRecord is one executed command.
type CommandHistoryRecord struct {
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Command   string    `json:"command"`
	Param     string    `json:"param"`
	Datetime  time.Time `json:"datetime"`
}

// TrackHistoryRecord is one played track.
type TrackHistoryRecord struct {
	Title       string    `json:"title"`
	SourceURL   string    `json:"source_url"`
	Duration    int       `json:"duration"`
	RequestedBy string    `json:"requested_by"`
	PlayedAt    time.Time `json:"played_at"`
}

// Record is everything stored for one guild.
type Record struct {
	Prefix              string                 `json:"prefix,omitempty"`
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history,omitempty"`
	TracksHistoryList   []TrackHistoryRecord   `json:"tracks_history,omitempty"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

func (s *Storage) guildRecord(guildID string) (*Record, error) {
	rec := &Record{}
	if _, err := s.ds.Get(guildID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Prefix returns the guild's command prefix, or fallback when unset.
func (s *Storage) Prefix(guildID, fallback string) string {
	rec, err := s.guildRecord(guildID)
	if err != nil || rec.Prefix == "" {
		return fallback
	}
	return rec.Prefix
}

// SetPrefix overrides the guild's command prefix.
func (s *Storage) SetPrefix(guildID, prefix string) error {
	rec, err := s.guildRecord(guildID)
	if err != nil {
		return err
	}
	rec.Prefix = prefix
	return s.ds.Set(guildID, rec)
}

// AddCommandHistory appends an executed command, keeping the newest entries.
func (s *Storage) AddCommandHistory(guildID string, entry CommandHistoryRecord) error {
	rec, err := s.guildRecord(guildID)
	if err != nil {
		return err
	}
	rec.CommandsHistoryList = append(rec.CommandsHistoryList, entry)
	if n := len(rec.CommandsHistoryList); n > commandHistoryLimit {
		rec.CommandsHistoryList = rec.CommandsHistoryList[n-commandHistoryLimit:]
	}
	return s.ds.Set(guildID, rec)
}

// AddTrackHistory records a played track, keeping the newest entries.
func (s *Storage) AddTrackHistory(guildID string, t track.Track) error {
	rec, err := s.guildRecord(guildID)
	if err != nil {
		return err
	}
	rec.TracksHistoryList = append(rec.TracksHistoryList, TrackHistoryRecord{
		Title:       t.Title,
		SourceURL:   t.SourceURL,
		Duration:    t.Duration,
		RequestedBy: t.RequestedBy,
		PlayedAt:    time.Now(),
	})
	if n := len(rec.TracksHistoryList); n > trackHistoryLimit {
		rec.TracksHistoryList = rec.TracksHistoryList[n-trackHistoryLimit:]
	}
	return s.ds.Set(guildID, rec)
}

// TrackHistory returns the guild's recently played tracks, newest last.
func (s *Storage) TrackHistory(guildID string) ([]TrackHistoryRecord, error) {
	rec, err := s.guildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return rec.TracksHistoryList, nil
}
