package playbook

import (
	"testing"
)

func TestNextID_MonotonicPerPrefix(t *testing.T) {
	pb := NewPlaybook([]string{"strategies", "pitfalls"})

	if got := pb.NextID("str"); got != "str-00001" {
		t.Errorf("first id = %s, want str-00001", got)
	}
	if got := pb.NextID("str"); got != "str-00002" {
		t.Errorf("second id = %s, want str-00002", got)
	}
	// Prefixes have independent sequences.
	if got := pb.NextID("pit"); got != "pit-00001" {
		t.Errorf("pit id = %s, want pit-00001", got)
	}
}

func TestNextID_NeverReusedAfterDelete(t *testing.T) {
	pb := NewPlaybook([]string{"strategies"})

	first := pb.NextID("str")
	pb.Insert(Bullet{ID: first, Section: "strategies", Content: "a"})
	if !pb.Delete(first) {
		t.Fatal("delete failed")
	}

	second := pb.NextID("str")
	if second == first {
		t.Errorf("sequence number reused after delete: %s", second)
	}
	if second != "str-00002" {
		t.Errorf("id = %s, want str-00002", second)
	}
}

func TestFind(t *testing.T) {
	pb := NewPlaybook([]string{"strategies", "pitfalls"})
	pb.Insert(Bullet{ID: "pit-00001", Section: "pitfalls", Content: "watch for nil"})

	b, section, ok := pb.Find("pit-00001")
	if !ok {
		t.Fatal("bullet not found")
	}
	if section != "pitfalls" || b.Content != "watch for nil" {
		t.Errorf("found (%s, %q)", section, b.Content)
	}

	// Find returns a pointer into the playbook, so edits stick.
	b.Metadata.HelpfulCount++
	again, _, _ := pb.Find("pit-00001")
	if again.Metadata.HelpfulCount != 1 {
		t.Error("mutation through Find pointer did not persist")
	}

	if _, _, ok := pb.Find("str-99999"); ok {
		t.Error("found a bullet that does not exist")
	}
}

func TestDelete(t *testing.T) {
	pb := NewPlaybook([]string{"strategies"})
	pb.Insert(Bullet{ID: "str-00001", Section: "strategies", Content: "a"})
	pb.Insert(Bullet{ID: "str-00002", Section: "strategies", Content: "b"})
	pb.Insert(Bullet{ID: "str-00003", Section: "strategies", Content: "c"})

	if !pb.Delete("str-00002") {
		t.Fatal("delete failed")
	}
	if pb.Delete("str-00002") {
		t.Error("second delete of same id succeeded")
	}

	bullets := pb.Sections["strategies"]
	if len(bullets) != 2 || bullets[0].ID != "str-00001" || bullets[1].ID != "str-00003" {
		t.Errorf("remaining bullets = %v", bullets)
	}
}

func TestCountAndSummarize(t *testing.T) {
	pb := NewPlaybook([]string{"strategies", "pitfalls"})
	pb.Insert(Bullet{ID: "str-00001", Section: "strategies", Metadata: Metadata{HelpfulCount: 3}})
	pb.Insert(Bullet{ID: "str-00002", Section: "strategies", Metadata: Metadata{HarmfulCount: 1}})
	pb.Insert(Bullet{ID: "pit-00001", Section: "pitfalls", Metadata: Metadata{NeutralCount: 2}})

	if pb.Count() != 3 {
		t.Errorf("count = %d, want 3", pb.Count())
	}

	stats := pb.Summarize()
	if stats.Bullets != 3 {
		t.Errorf("stats bullets = %d, want 3", stats.Bullets)
	}
	if stats.PerSection["strategies"] != 2 || stats.PerSection["pitfalls"] != 1 {
		t.Errorf("per section = %v", stats.PerSection)
	}
	if stats.HelpfulTotal != 3 || stats.HarmfulTotal != 1 || stats.NeutralTotal != 2 {
		t.Errorf("counter totals = %d/%d/%d", stats.HelpfulTotal, stats.HarmfulTotal, stats.NeutralTotal)
	}
}
