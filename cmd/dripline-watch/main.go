// dripline-watch tails the live enrollment state of one automation from the
// terminal, using the same polling tracker the editor uses.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v3"

	"github.com/dripline/dripline/pkg/enrollment"
	"github.com/dripline/dripline/pkg/log"
	"github.com/dripline/dripline/pkg/models"
)

func main() {
	logger := log.WithModule("watch")

	command := &cli.Command{
		Name:  "dripline-watch",
		Usage: "Watch live enrollment counts for an automation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "automation-id",
				Usage:    "Automation to watch",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "runtime-url",
				Usage:   "Base URL of the delivery runtime's aggregate endpoints",
				Sources: cli.EnvVars("RUNTIME_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for runtime aggregates (overrides runtime-url)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Polling interval",
				Value: enrollment.DefaultInterval,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			var source enrollment.CountsSource

			if redisURL := command.String("redis-url"); redisURL != "" {
				opts, err := redis.ParseURL(redisURL)
				if err != nil {
					return err
				}

				source = enrollment.NewRedisSource(redis.NewClient(opts))
			} else {
				source = enrollment.NewHTTPSource(command.String("runtime-url"))
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			automationID := command.String("automation-id")
			tracker := enrollment.NewTracker(source, command.Duration("interval"), logger)

			logger.InfoContext(ctx, "Watching enrollments", "automation_id", automationID)

			tracker.Run(ctx, automationID, func(counts *models.EnrollmentCounts) {
				attrs := []any{
					"time", time.Now().Format(time.TimeOnly),
					"total_active", counts.TotalActive,
				}

				for _, step := range counts.Steps {
					count := counts.StepCounts[step.StepOrder]
					attrs = append(attrs, step.TemplateSlug, count.Count)
				}

				logger.InfoContext(ctx, "Enrollment counts", attrs...)
			})

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
