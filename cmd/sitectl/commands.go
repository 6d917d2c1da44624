package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/teambition/rrule-go"

	"foundation_site/internal/bootstrap"
	"foundation_site/internal/config"
	"foundation_site/internal/models"
	"foundation_site/internal/services"
	"foundation_site/internal/tasks"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := env()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			cfg.Store.Backend = config.StoreBackendPostgres
			_, db, err := bootstrap.OpenStore(cfg.Store, log)
			if err != nil {
				return err
			}
			if err := services.AutoMigrate(db, log); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

type scheduleOptions struct {
	taskName   string
	arguments  string
	due        string
	taskType   string
	recurring  string
	maxAttempt int
}

func scheduleTaskCmd() *cobra.Command {
	var opts scheduleOptions

	cmd := &cobra.Command{
		Use:   "schedule-task",
		Short: "Queue a task for the worker",
		Long: `Queue a task for the worker.

Examples:
  sitectl schedule-task --task-name log_info --arguments '{"message":"hi"}' --due "2026-01-02 15:04"
  sitectl schedule-task --task-name admin_digest --arguments '{"hours":168}' \
    --due 2026-01-05T07:00:00+03:00 --tasktype recurring --recurring "FREQ=WEEKLY;BYDAY=MO"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := opts.build(time.Local)
			if err != nil {
				return err
			}

			cfg, log, err := env()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			cfg.Store.Backend = config.StoreBackendPostgres
			_, db, err := bootstrap.OpenStore(cfg.Store, log)
			if err != nil {
				return err
			}
			if err := tasks.NewGormTaskStore(db).Create(cmd.Context(), task); err != nil {
				return fmt.Errorf("failed to create task: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Successfully created task ID: %d\n", task.ID)
			fmt.Fprintf(out, "Task: %s\nDue: %s\nType: %s\n", task.TaskName, task.Due, task.TaskType)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.taskName, "task-name", "", "name of the task (required)")
	cmd.Flags().StringVar(&opts.arguments, "arguments", "{}", "JSON arguments for the task")
	cmd.Flags().StringVar(&opts.due, "due", "", "due date, RFC 3339 or 2006-01-02 15:04 local time (required)")
	cmd.Flags().StringVar(&opts.taskType, "tasktype", string(models.ScheduledTaskTypeOneTime), "onetime or recurring")
	cmd.Flags().StringVar(&opts.recurring, "recurring", "", "RFC 5545 recurrence rule for recurring tasks")
	cmd.Flags().IntVar(&opts.maxAttempt, "max-attempt", 3, "attempts per run")
	_ = cmd.MarkFlagRequired("task-name")
	_ = cmd.MarkFlagRequired("due")

	return cmd
}

// build validates the flags and returns the task to insert.
func (o scheduleOptions) build(loc *time.Location) (*models.ScheduledTask, error) {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(o.arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid JSON arguments: %w", err)
	}

	due, err := parseDue(o.due, loc)
	if err != nil {
		return nil, err
	}

	taskType := models.ScheduledTaskType(o.taskType)
	var recurring *string
	switch taskType {
	case models.ScheduledTaskTypeOneTime:
		if o.recurring != "" {
			return nil, fmt.Errorf("--recurring needs --tasktype recurring")
		}
	case models.ScheduledTaskTypeRecurring:
		if _, err := rrule.StrToRRule(o.recurring); err != nil {
			return nil, fmt.Errorf("invalid recurrence rule %q: %w", o.recurring, err)
		}
		recurring = &o.recurring
	default:
		return nil, fmt.Errorf("unknown task type %q", o.taskType)
	}

	return tasks.BuildScheduledTask(o.taskName, args, due, recurring, taskType, o.maxAttempt)
}

func parseDue(value string, loc *time.Location) (time.Time, error) {
	if due, err := time.Parse(time.RFC3339, value); err == nil {
		return due, nil
	}
	due, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q: use RFC 3339 or 2006-01-02 15:04", value)
	}
	return due, nil
}

func sendWhatsappCmd() *cobra.Command {
	var phone, msg string

	cmd := &cobra.Command{
		Use:   "send-whatsapp",
		Short: "Send a test WhatsApp message through WAHA",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := env()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			if cfg.Waha.BaseURL == "" {
				return fmt.Errorf("WAHA_BASE_URL is not set")
			}
			chatID := services.NormalizeChatID(phone)
			fmt.Fprintf(cmd.OutOrStdout(), "Sending message to %s: %s\n", chatID, msg)

			waha := services.NewWahaService(cfg.Waha, bootstrap.HTTPClient())
			if err := waha.SendMessage(cmd.Context(), chatID, msg); err != nil {
				return fmt.Errorf("failed to send message: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Message sent successfully!")
			return nil
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "phone number or chat id, e.g. 0712345678 (required)")
	cmd.Flags().StringVar(&msg, "msg", "Test message from sitectl", "message body")
	_ = cmd.MarkFlagRequired("phone")

	return cmd
}

func verifyPaymentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-payment [transaction-id]",
		Short: "Ask the gateway for a transaction's status and apply it to its donation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := env()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			gw, _, err := bootstrap.OpenStore(cfg.Store, log)
			if err != nil {
				return err
			}
			client, _ := bootstrap.NewPaymentClient(cfg.Payment, log)
			if client == nil {
				return fmt.Errorf("unknown PAYMENT_PROVIDER %q", cfg.Payment.Provider)
			}

			svc := services.NewPaymentService(gw, client, cfg.Payment.ReturnURL, cfg.Payment.WebhookURL, log)
			v, err := svc.Verify(cmd.Context(), args[0])
			if v == nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Transaction: %s\nGateway status: %s\nStatus: %s\n", v.TransactionID, v.GatewayStatus, v.Status)
			if err != nil {
				return fmt.Errorf("status not applied: %w", err)
			}
			return nil
		},
	}
}
