package moderation

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRuleClassifier(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"I will run 5km every day this week", true},
		{"I'll finish my thesis draft by Friday", true},
		{"I promise to quit smoking", true},
		{"gym", false},
		{"the weather is nice today", false},
		{"Someone should clean the kitchen", false},
		{"", false},
	}

	for _, tc := range cases {
		verdict, err := RuleClassifier{}.Classify(context.Background(), tc.text)
		if err != nil {
			t.Fatalf("classify %q: %v", tc.text, err)
		}
		if verdict.Commitment != tc.want {
			t.Fatalf("classify %q = %v, want %v (reason: %s)", tc.text, verdict.Commitment, tc.want, verdict.Reason)
		}
		if !verdict.Commitment && verdict.Reason == "" {
			t.Fatalf("rejection of %q carries no reason", tc.text)
		}
	}
}

func TestHTTPClassifierParsesAnswer(t *testing.T) {
	for _, answer := range []string{"YES", "yes, it is", "NO"} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("unexpected method %s", r.Method)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("unexpected authorization header %q", got)
			}
			fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, answer)
		}))

		c, err := NewHTTPClassifier(srv.Client(), srv.URL, "test-key", "test-model", nil)
		if err != nil {
			t.Fatalf("new classifier: %v", err)
		}

		verdict, err := c.Classify(context.Background(), "I will read a book")
		if err != nil {
			t.Fatalf("classify: %v", err)
		}
		wantYes := answer[0] == 'Y' || answer[0] == 'y'
		if verdict.Commitment != wantYes {
			t.Fatalf("answer %q: got commitment=%v", answer, verdict.Commitment)
		}
		srv.Close()
	}
}

func TestServiceFallsBackWhenRemoteFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	remote, err := NewHTTPClassifier(srv.Client(), srv.URL, "", "m", nil)
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}

	svc := New(remote, nil)
	verdict, err := svc.Classify(context.Background(), "I will write every morning")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !verdict.Commitment {
		t.Fatalf("rule fallback rejected a valid commitment: %s", verdict.Reason)
	}
}
