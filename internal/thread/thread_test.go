package thread_test

import (
	"errors"
	"testing"

	"clipper/internal/services"
	"clipper/internal/thread"
)

func TestParseExcludesHook(t *testing.T) {
	segments, err := thread.Parse("Hook\n---\nTweet one\n---\nTweet two")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "Tweet one" || segments[1].Text != "Tweet two" {
		t.Fatalf("unexpected segment texts: %+v", segments)
	}
	if segments[0].Ordinal != 1 || segments[1].Ordinal != 2 {
		t.Fatalf("expected ordinals 1,2, got %d,%d", segments[0].Ordinal, segments[1].Ordinal)
	}
}

func TestParseDropsEmptyPieces(t *testing.T) {
	segments, err := thread.Parse("Hook\n---\n\n---\nOnly tweet\n---\n   ")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].Text != "Only tweet" {
		t.Fatalf("unexpected text %q", segments[0].Text)
	}
}

func TestParseSingleBlockWithoutDelimiter(t *testing.T) {
	segments, err := thread.Parse("Just one piece of text")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
}

func TestParseEmptyThreadIsInputError(t *testing.T) {
	for _, input := range []string{"", "   \n  ", "---", "\n---\n---\n"} {
		_, err := thread.Parse(input)
		if err == nil {
			t.Fatalf("expected error for input %q", input)
		}
		if !errors.Is(err, services.ErrInput) {
			t.Fatalf("expected ErrInput, got %v", err)
		}
	}
}

func TestParseDuplicateTextsKeepDistinctIdentity(t *testing.T) {
	segments, err := thread.Parse("Hook\n---\nSame text\n---\nSame text")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].ID == segments[1].ID {
		t.Fatal("duplicate texts must keep distinct segment IDs")
	}
}

func TestParseMultilineSegment(t *testing.T) {
	segments, err := thread.Parse("Hook\n---\nline one\nline two")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if segments[0].Text != "line one\nline two" {
		t.Fatalf("expected multi-line text preserved, got %q", segments[0].Text)
	}
}
