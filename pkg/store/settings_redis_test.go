package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"briefly/pkg/domain"
)

func TestRedisSettingsStoreRoundTrip(t *testing.T) {
	redis := miniredis.RunT(t)
	s := NewRedisSettingsStore(redis.Addr(), "", time.Minute)

	if _, ok, err := s.GetSettings("sess-1"); err != nil || ok {
		t.Fatalf("expected miss for fresh session: ok=%v err=%v", ok, err)
	}

	want := domain.Settings{AssistantName: "Demo Assistant", ResponseStyle: "Professional", HistoryLimit: 12, ShowTimestamps: true}
	if err := s.SaveSettings("sess-1", want); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	got, ok, err := s.GetSettings("sess-1")
	if err != nil || !ok {
		t.Fatalf("get settings: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}

func TestRedisSettingsStoreExpires(t *testing.T) {
	redis := miniredis.RunT(t)
	s := NewRedisSettingsStore(redis.Addr(), "", time.Minute)

	if err := s.SaveSettings("sess-1", domain.DefaultSettings()); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	redis.FastForward(2 * time.Minute)
	if _, ok, err := s.GetSettings("sess-1"); err != nil || ok {
		t.Fatalf("expected settings to expire: ok=%v err=%v", ok, err)
	}
}
