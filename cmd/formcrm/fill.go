package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formcrm/internal/app"
	"github.com/goliatone/go-formcrm/pkg/form"
	"github.com/goliatone/go-formcrm/pkg/orchestrator"
	"github.com/goliatone/go-formcrm/pkg/processor"
	"github.com/goliatone/go-formcrm/pkg/renderers/tui"
)

var (
	flagFillSession  string
	flagFillContacts []string
)

var fillCmd = &cobra.Command{
	Use:   "fill <form-id>",
	Short: "Fill a form in the terminal and submit it through the processors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		a, err := newApp(ctx, app.WithTUIOutput(out))
		if err != nil {
			return err
		}
		defer a.Close()

		session := flagFillSession
		if session == "" {
			session = a.Orchestrator.NewSessionID()
		}
		if err := seedContacts(ctx, a, session, flagFillContacts); err != nil {
			return err
		}

		answers, _, err := a.Orchestrator.Generate(ctx, orchestrator.Request{
			FormID:    args[0],
			SessionID: session,
			Renderer:  tui.Name,
		})
		if err != nil {
			return err
		}

		var values map[string]any
		if err := json.Unmarshal(answers, &values); err != nil {
			return fmt.Errorf("decode answers: %w", err)
		}

		result, err := a.Orchestrator.Submit(ctx, orchestrator.SubmitRequest{
			FormID:    args[0],
			SessionID: session,
			Values:    values,
			Meta:      map[string]string{form.MetaUserAgent: "formcrm-cli"},
		})
		if err != nil {
			return err
		}
		printResult(out, result)
		if !result.Accepted() {
			return fmt.Errorf("submission was not accepted")
		}
		return nil
	},
}

func init() {
	fillCmd.Flags().StringVar(&flagFillSession, "session", "", "session id (minted when empty)")
	fillCmd.Flags().StringSliceVar(&flagFillContacts, "contact", nil, "seed a contact as link=contact_id (repeatable)")
}

func printResult(out io.Writer, result orchestrator.SubmitResult) {
	for field, messages := range result.Errors {
		for _, message := range messages {
			fmt.Fprintf(out, "%s: %s\n", field, message)
		}
	}
	notes := result.Outcome.Notes
	if result.Accepted() {
		notes = append(notes, processor.Note{Type: processor.NoteSuccess, Message: "submitted"})
	}
	replacer := strings.NewReplacer("<br>", "\n", "<pre>", "", "</pre>", "")
	for _, note := range notes {
		fmt.Fprintf(out, "[%s] %s\n", note.Type, replacer.Replace(note.Message))
	}
	fmt.Fprintf(out, "process %s\n", result.Submission.ProcessID)
}
