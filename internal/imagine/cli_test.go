package imagine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/PhucHuwu/Imagine-IV/internal/services"
)

func stubHelper(t *testing.T, exitCode int, observe func(args []string)) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if observe != nil {
			observe(args)
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("IMAGINE_HELPER_EXIT=%d", exitCode),
		)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestSubmitImagePromptCarriesProfile(t *testing.T) {
	var captured []string
	stubHelper(t, 0, func(args []string) { captured = args })

	cli := NewCLI("/profiles/worker_1", WithBinary("imagine-automate"))
	if err := cli.SubmitImagePrompt(context.Background(), "a lighthouse at dawn"); err != nil {
		t.Fatalf("SubmitImagePrompt: %v", err)
	}

	joined := strings.Join(captured, " ")
	if !strings.HasPrefix(joined, "--profile /profiles/worker_1 submit-image") {
		t.Fatalf("unexpected arguments: %v", captured)
	}
	if !strings.Contains(joined, "--prompt a lighthouse at dawn") {
		t.Fatalf("prompt missing from arguments: %v", captured)
	}
}

func TestSubmitImagePromptRequiresText(t *testing.T) {
	cli := NewCLI("/profiles/worker_1")
	if err := cli.SubmitImagePrompt(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank prompt")
	}
}

func TestProbeExitStatuses(t *testing.T) {
	cli := NewCLI("/profiles/worker_1")

	stubHelper(t, 0, nil)
	ready, err := cli.ImageReady(context.Background())
	if err != nil || !ready {
		t.Fatalf("expected ready=true, got %v, %v", ready, err)
	}

	stubHelper(t, 1, nil)
	ready, err = cli.ImageReady(context.Background())
	if err != nil || ready {
		t.Fatalf("expected ready=false, got %v, %v", ready, err)
	}

	stubHelper(t, 3, nil)
	_, err = cli.ImageReady(context.Background())
	if !errors.Is(err, services.ErrUIFailure) {
		t.Fatalf("expected ui failure for exit 3, got %v", err)
	}
}

func TestDownloadImageArguments(t *testing.T) {
	var captured []string
	stubHelper(t, 0, func(args []string) { captured = args })

	cli := NewCLI("/profiles/worker_2")
	if err := cli.DownloadImage(context.Background(), 2, "/images/out.jpg"); err != nil {
		t.Fatalf("DownloadImage: %v", err)
	}
	joined := strings.Join(captured, " ")
	if !strings.Contains(joined, "download-image --rank 2 --output /images/out.jpg") {
		t.Fatalf("unexpected arguments: %v", captured)
	}
}

func TestDownloadImageRejectsBadRank(t *testing.T) {
	cli := NewCLI("/profiles/worker_1")
	if err := cli.DownloadImage(context.Background(), 0, "/images/out.jpg"); err == nil {
		t.Fatal("expected error for rank 0")
	}
}

func TestRunFailureIsUIFailure(t *testing.T) {
	stubHelper(t, 2, nil)

	cli := NewCLI("/profiles/worker_1")
	err := cli.SubmitVideo(context.Background(), "/images/in.jpg", "slow pan")
	if !errors.Is(err, services.ErrUIFailure) {
		t.Fatalf("expected ui failure, got %v", err)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	code := 0
	if v := os.Getenv("IMAGINE_HELPER_EXIT"); v != "" {
		fmt.Sscanf(v, "%d", &code)
	}
	if code != 0 {
		fmt.Fprintln(os.Stderr, "helper failure detail")
	}
	os.Exit(code)
}
