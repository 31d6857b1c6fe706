package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"parley/internal/artifact"
	"parley/internal/events"
	"parley/internal/session"
	"parley/internal/store"
)

// runChat drives an interview from the terminal. sessionID empty starts a
// new session; otherwise the persisted one is resumed. The loop is the
// single logical thread: user turns and continuation events are both fed
// to the orchestrator from here, never concurrently.
func runChat(sessionID string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	var sess *session.Session
	if sessionID == "" {
		sess, err = session.New(cfg, client, st)
	} else {
		sess, err = session.Resume(cfg, client, st, sessionID)
	}
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		sess.Orch.Interrupt("user interrupt")
		cancel()
	}()

	fmt.Printf("Session %s (phase: %s). Type /help for commands.\n\n", sess.ID, sess.Coordinator.Current())

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if done := handleCommand(ctx, sess, line); done {
				break
			}
			continue
		}

		result, err := sess.Orch.NextTurn(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			continue
		}
		printTurn(sess, result.Text)
	}
	return scanner.Err()
}

// handleCommand processes slash commands. Returns true to end the chat.
func handleCommand(ctx context.Context, sess *session.Session, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(`Commands:
  /upload <path>   Provide a requested document
  /approve         Approve a pending sub-agent dispatch
  /kill <task-id>  Cancel one running sub-agent task
  /status          Show phase progress
  /artifacts       List ingested artifacts
  /quit            End the chat (session state is persisted)`)

	case "/upload":
		if len(fields) < 2 {
			fmt.Println("usage: /upload <path>")
			return false
		}
		uploadFile(ctx, sess, fields[1])

	case "/approve":
		approve(ctx, sess)

	case "/kill":
		if len(fields) < 2 {
			fmt.Println("usage: /kill <task-id>")
			return false
		}
		sess.Bus.Publish(events.KindKillAgent, events.KillAgent{TaskID: fields[1]})
		fmt.Printf("kill requested for task %s\n", fields[1])

	case "/status":
		printProgress(sess)

	case "/artifacts":
		printArtifacts(sess)

	default:
		fmt.Printf("unknown command %s (try /help)\n", fields[0])
	}
	return false
}

// uploadFile reads the file and hands it to the orchestrator as an
// upload continuation.
func uploadFile(ctx context.Context, sess *session.Session, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
		return
	}
	payload := events.UploadCompleted{
		Filename:   filepath.Base(path),
		SourceType: string(artifact.SourceUpload),
		Content:    content,
	}
	sess.Bus.Publish(events.KindUploadCompleted, payload)
	sess.Orch.HandleEvent(ctx, events.Event{
		Kind:      events.KindUploadCompleted,
		Timestamp: time.Now(),
		Payload:   payload,
	})
	fmt.Printf("Uploaded %s (%d bytes).\n", filepath.Base(path), len(content))
}

// approve grants a pending dispatch approval.
func approve(ctx context.Context, sess *session.Session) {
	payload := events.ApprovalGranted{Topic: "dispatch"}
	sess.Bus.Publish(events.KindApprovalGranted, payload)
	sess.Orch.HandleEvent(ctx, events.Event{
		Kind:      events.KindApprovalGranted,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func printTurn(sess *session.Session, text string) {
	if text != "" {
		fmt.Printf("\n%s\n\n", text)
	}
	if w := sess.Orch.Waiting(); w != "" {
		fmt.Printf("[waiting: %s]\n", w)
	}
}

func printProgress(sess *session.Session) {
	p := sess.Coordinator.Progress()
	fmt.Printf("Phase: %s (%.0f%% of required objectives met)\n", p.Current, p.Fraction*100)
	for _, m := range p.Milestones {
		mark := " "
		if m.Satisfied {
			mark = "x"
		}
		fmt.Printf("  [%s] %-14s %d/%d\n", mark, m.Phase, m.Done, m.Total)
	}
}

func printArtifacts(sess *session.Session) {
	listings := sess.Artifacts.List(sess.ID)
	if len(listings) == 0 {
		fmt.Println("No artifacts.")
		return
	}
	for _, l := range listings {
		fmt.Printf("  %s  %-14s %-30s %6d bytes  summary: %s\n",
			l.ID, l.SourceType, l.Filename, l.SizeBytes, l.SummaryState)
	}
}
