package assist

import (
	"testing"
	"time"

	"github.com/sahayak-app/sahayak/pkg/store"
)

func factByKey(facts []store.MemoryFact, key string) (store.MemoryFact, bool) {
	for _, f := range facts {
		if f.Key == key {
			return f, true
		}
	}
	return store.MemoryFact{}, false
}

func TestExtractFacts_Location(t *testing.T) {
	facts := ExtractFacts("I live in New Delhi and need help", time.Now())
	f, ok := factByKey(facts, "location")
	if !ok {
		t.Fatal("expected location fact")
	}
	if string(f.Value) != `"new delhi"` {
		t.Errorf("location = %s", f.Value)
	}
	if f.Type != store.FactFact || f.ExpiresAtMS != 0 {
		t.Errorf("location fact misclassified: %#v", f)
	}
}

func TestExtractFacts_Age(t *testing.T) {
	facts := ExtractFacts("I am 34 years old", time.Now())
	f, ok := factByKey(facts, "age")
	if !ok {
		t.Fatal("expected age fact")
	}
	if string(f.Value) != "34" {
		t.Errorf("age = %s", f.Value)
	}
}

func TestExtractFacts_Profession(t *testing.T) {
	facts := ExtractFacts("I work as a teacher in a school", time.Now())
	f, ok := factByKey(facts, "profession")
	if !ok {
		t.Fatal("expected profession fact")
	}
	if string(f.Value) != `"a teacher"` {
		t.Errorf("profession = %s", f.Value)
	}
}

func TestExtractFacts_TopicInterestExpires(t *testing.T) {
	now := time.Now()
	facts := ExtractFacts("how do I apply for a passport and a visa?", now)

	passport, ok := factByKey(facts, "interested_in_passport")
	if !ok {
		t.Fatal("expected passport interest")
	}
	if passport.Type != store.FactContext {
		t.Errorf("type = %q", passport.Type)
	}
	want := now.Add(30 * 24 * time.Hour).UnixMilli()
	if passport.ExpiresAtMS != want {
		t.Errorf("expiry = %d, want %d", passport.ExpiresAtMS, want)
	}

	if _, ok := factByKey(facts, "interested_in_visa"); !ok {
		t.Error("expected visa interest")
	}
}

func TestExtractFacts_MultiWordTopicKey(t *testing.T) {
	facts := ExtractFacts("lost my pan card", time.Now())
	if _, ok := factByKey(facts, "interested_in_pan_card"); !ok {
		t.Errorf("expected underscored key, got %#v", facts)
	}
}

func TestExtractFacts_NothingToExtract(t *testing.T) {
	if facts := ExtractFacts("hello there", time.Now()); len(facts) != 0 {
		t.Errorf("expected no facts, got %#v", facts)
	}
}
