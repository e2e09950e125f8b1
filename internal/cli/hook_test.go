package cli

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateHookScript(t *testing.T) {
	script := generateHookScript("text", false)

	if !strings.Contains(script, hookMarkerStart) {
		t.Error("Script missing start marker")
	}
	if !strings.Contains(script, hookMarkerEnd) {
		t.Error("Script missing end marker")
	}
	if !strings.Contains(script, "restack reorganise --dry-run --check --format text") {
		t.Error("Script missing restack command with correct flags")
	}
	if !strings.Contains(script, `if [ "$1" = "rebase" ]; then`) {
		t.Error("Script should only run after rebase")
	}
	if strings.Contains(script, "amend") {
		t.Error("Script should not run after amend unless asked")
	}
	if !strings.Contains(script, "RESTACK_EXIT=$?") {
		t.Error("Script missing exit code capture")
	}
	if strings.Contains(script, "exit 1") {
		t.Error("post-rewrite hook should never exit non-zero")
	}
}

func TestGenerateHookScript_CustomFlags(t *testing.T) {
	script := generateHookScript("json", true)

	if !strings.Contains(script, "--format json") {
		t.Error("Script doesn't use custom format")
	}
	if !strings.Contains(script, `[ "$1" = "amend" ]`) {
		t.Error("Script doesn't run after amend")
	}
}

func TestReplaceHookSection_NoExisting(t *testing.T) {
	existing := "#!/bin/sh\nsome-other-hook\n"
	section := generateHookScript("text", false)

	result := replaceHookSection(existing, section)

	if !strings.HasPrefix(result, "#!/bin/sh\nsome-other-hook\n") {
		t.Error("Existing content should be preserved")
	}
	if !strings.Contains(result, hookMarkerStart) {
		t.Error("New section should be appended")
	}
}

func TestReplaceHookSection_ExistingSection(t *testing.T) {
	oldSection := generateHookScript("text", false)
	existing := "#!/bin/sh\nbefore\n" + oldSection + "after\n"
	newSection := generateHookScript("yaml", true)

	result := replaceHookSection(existing, newSection)

	if !strings.Contains(result, "before") {
		t.Error("Content before restack section should be preserved")
	}
	if !strings.Contains(result, "after") {
		t.Error("Content after restack section should be preserved")
	}
	if !strings.Contains(result, "--format yaml") {
		t.Error("New section should have updated flags")
	}
	if strings.Contains(result, "--format text") {
		t.Error("Old section should be replaced")
	}
	if strings.Count(result, hookMarkerStart) != 1 {
		t.Error("Section should appear exactly once")
	}
}

func TestRemoveHookSection(t *testing.T) {
	section := generateHookScript("text", false)
	existing := "#!/bin/sh\nbefore\n" + section + "after\n"

	result := removeHookSection(existing)

	if strings.Contains(result, hookMarkerStart) {
		t.Error("restack section should be removed")
	}
	if result != "#!/bin/sh\nbefore\nafter\n" {
		t.Errorf("result = %q", result)
	}
}

func TestRemoveHookSection_NoSection(t *testing.T) {
	existing := "#!/bin/sh\nsome-hook\n"
	result := removeHookSection(existing)
	if result != existing {
		t.Error("Content without restack section should be unchanged")
	}
}

func TestReplaceHookSection_NoTrailingNewline(t *testing.T) {
	existing := "#!/bin/sh\nsome-hook"
	section := generateHookScript("text", false)

	result := replaceHookSection(existing, section)

	if !strings.Contains(result, "some-hook\n"+hookMarkerStart) {
		t.Error("Section should be appended on a new line")
	}
}

func TestHookInstallUninstall(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	isolate(t)
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	dir := t.TempDir()
	if out, err := exec.Command("git", "init", "-q", dir).CombinedOutput(); err != nil {
		t.Fatalf("git init: %v\n%s", err, out)
	}
	t.Chdir(dir)
	resetFlags()
	hookFormat = "text"
	saved := exitCode
	t.Cleanup(func() { exitCode = saved })
	exitCode = ExitSuccess

	hookPath := filepath.Join(dir, ".git", "hooks", hookName)
	if err := os.MkdirAll(filepath.Dir(hookPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(hookPath, []byte("#!/bin/sh\necho mine\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	hookCmd.SetArgs([]string{"install"})
	if err := hookCmd.Execute(); err != nil {
		t.Fatalf("hook install: %v", err)
	}
	if exitCode != ExitSuccess {
		t.Fatalf("exitCode = %d after install", exitCode)
	}
	data, err := os.ReadFile(hookPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "echo mine") || !strings.Contains(string(data), hookMarkerStart) {
		t.Fatalf("hook after install:\n%s", data)
	}

	hookCmd.SetArgs([]string{"uninstall"})
	if err := hookCmd.Execute(); err != nil {
		t.Fatalf("hook uninstall: %v", err)
	}
	data, err = os.ReadFile(hookPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "#!/bin/sh\necho mine\n" {
		t.Errorf("hook after uninstall = %q", data)
	}
}
