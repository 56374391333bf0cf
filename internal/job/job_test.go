package job

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPendingUpload, StatusChunking, true},
		{StatusChunking, StatusChunked, true},
		{StatusChunking, StatusChunkingFailed, true},
		{StatusChunked, StatusTranslationInProgress, true},
		{StatusChunked, StatusTranslationCompleted, true},
		{StatusTranslationInProgress, StatusTranslationInProgress, true},
		{StatusTranslationInProgress, StatusTranslationCompleted, true},
		{StatusTranslationInProgress, StatusTranslationFailed, true},
		{StatusChunkingFailed, StatusChunking, false},
		{StatusTranslationCompleted, StatusTranslationInProgress, false},
		{StatusPendingUpload, StatusChunked, false},
		{StatusChunked, StatusChunked, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDispatchableFrom(t *testing.T) {
	if !DispatchableFrom(StatusChunked) {
		t.Error("expected CHUNKED to be dispatchable")
	}
	if !DispatchableFrom(StatusTranslationInProgress) {
		t.Error("expected TRANSLATION_IN_PROGRESS to be dispatchable")
	}
	if DispatchableFrom(StatusPendingUpload) {
		t.Error("expected PENDING_UPLOAD to not be dispatchable")
	}
	if DispatchableFrom(StatusTranslationCompleted) {
		t.Error("expected TRANSLATION_COMPLETED to not be dispatchable")
	}
}

func TestValidTone(t *testing.T) {
	for _, tone := range []Tone{ToneFormal, ToneInformal, ToneNeutral} {
		if !ValidTone(tone) {
			t.Errorf("expected %s to be valid", tone)
		}
	}
	if ValidTone(Tone("sarcastic")) {
		t.Error("expected unknown tone to be invalid")
	}
}

func TestSupportedTargetLanguages(t *testing.T) {
	want := map[string]string{
		"es": "Spanish",
		"fr": "French",
		"it": "Italian",
		"de": "German",
		"zh": "Chinese (Simplified)",
	}
	for code, name := range want {
		if got := SupportedTargetLanguages[code]; got != name {
			t.Errorf("SupportedTargetLanguages[%q] = %q, want %q", code, got, name)
		}
	}
	if len(SupportedTargetLanguages) != len(want) {
		t.Errorf("expected exactly %d supported languages, got %d", len(want), len(SupportedTargetLanguages))
	}
}
