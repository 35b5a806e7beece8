package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"labtrack/internal/assistant"
	"labtrack/internal/config"
	"labtrack/internal/db"
	"labtrack/internal/domain"
	"labtrack/internal/ledger"
	"labtrack/internal/llm"
	"labtrack/internal/migrate"
	"labtrack/internal/server"
	"labtrack/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "lt",
	Short: "Labtrack CLI",
	Long: `Labtrack tracks the quality-control team's tasks and user stories.
Tasks carry priority, status, category, effort, risk analysis, and the token
cost of their model-generated fields. Storage is the configured sqlite
database when reachable, otherwise the JSON files in the data directory.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("LABTRACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(storyCmd())
	rootCmd.AddCommand(assistCmd())
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetString("workspace"))
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// openGateway wires the configured backends. A missing database path means
// pure file mode; a configured one is opened and migrated up front.
func openGateway(cfg *config.Config, log *slog.Logger) (*store.Gateway, *sql.DB, error) {
	var conn *sql.DB
	if cfg.Database.Path != "" {
		var err error
		conn, err = db.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, err
		}
		if err := migrate.Migrate(conn); err != nil {
			conn.Close()
			return nil, nil, err
		}
	}
	files := store.NewFileStore(cfg.TasksFile(), cfg.StoriesFile(), log)
	return store.NewGateway(conn, files, log), conn, nil
}

func withGateway(fn func(ctx context.Context, gw *store.Gateway, cfg *config.Config, log *slog.Logger) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log.Level)
	gw, conn, err := openGateway(cfg, log)
	if err != nil {
		return err
	}
	if conn != nil {
		defer conn.Close()
	}
	return fn(context.Background(), gw, cfg, log)
}

func newAssistant(cfg *config.Config, gw *store.Gateway, log *slog.Logger) *assistant.Service {
	client := llm.NewClient(cfg.Model, llm.LogObserver{Log: log})
	return assistant.NewService(client, gw, cfg.Model, log)
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			log := newLogger(cfg.Log.Level)
			gw, conn, err := openGateway(cfg, log)
			if err != nil {
				return err
			}
			if conn != nil {
				defer conn.Close()
			}
			handler, err := server.New(server.Config{
				Gateway:   gw,
				Assistant: newAssistant(cfg, gw, log),
				Forms:     ledger.New(ledger.DefaultTTL),
				BasePath:  cfg.Server.BasePath,
				Auth: server.AuthConfig{
					JWTSecret: cfg.Auth.JWTSecret,
					DevLogin:  cfg.Auth.DevLogin,
				},
				Logger: log,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info("serving labtrack API",
				"addr", cfg.Server.Addr,
				"base_path", cfg.Server.BasePath,
				"database", cfg.Database.Path != "")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Path == "" {
				return fmt.Errorf("no database configured; set database.path in %s", config.Path(viper.GetString("workspace")))
			}
			conn, err := db.Open(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage tasks"}
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskCreateCmd())
	cmd.AddCommand(taskGetCmd())
	cmd.AddCommand(taskUpdateCmd())
	cmd.AddCommand(taskDeleteCmd())
	cmd.AddCommand(taskStatsCmd())
	cmd.AddCommand(taskEnrichCmd())
	return cmd
}

func taskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGateway(func(ctx context.Context, gw *store.Gateway, cfg *config.Config, log *slog.Logger) error {
				tasks, err := gw.ListTasks(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Priority", "Status", "Category", "Effort", "Assignee", "Project"})
				for _, t := range tasks {
					assignee := t.AssignedTo
					if assignee == "" {
						assignee = store.Unassigned
					}
					tw.AppendRow(table.Row{
						t.ID, t.Title, t.Priority.Label(), t.Status.Label(),
						t.Category.Label(), t.Effort, assignee, t.StoryProject,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func taskCreateCmd() *cobra.Command {
	var title, description, priority, status, category, assignedTo, assignedRole string
	var effort int
	var storyID int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(title) == "" {
				return fmt.Errorf("--title required")
			}
			return withGateway(func(ctx context.Context, gw *store.Gateway, cfg *config.Config, log *slog.Logger) error {
				fields := map[string]any{
					"title":         title,
					"description":   description,
					"priority":      priority,
					"status":        status,
					"category":      category,
					"effort":        effort,
					"assigned_to":   assignedTo,
					"assigned_role": assignedRole,
				}
				if storyID > 0 {
					fields["user_story_id"] = storyID
				}
				t, err := gw.CreateTask(ctx, fields)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&priority, "priority", "", "low|medium|high|blocking")
	cmd.Flags().StringVar(&status, "status", "", "pending|in_progress|in_review|done")
	cmd.Flags().StringVar(&category, "category", "", "task category")
	cmd.Flags().IntVar(&effort, "effort", 0, "effort in hours")
	cmd.Flags().StringVar(&assignedTo, "assigned-to", "", "assignee")
	cmd.Flags().StringVar(&assignedRole, "assigned-role", "", "assignee role")
	cmd.Flags().Int64Var(&storyID, "story", 0, "parent user story id")
	return cmd
}

func taskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.CoerceInt64(args[0])
			return withGateway(func(ctx context.Context, gw *store.Gateway, cfg *config.Config, log *slog.Logger) error {
				t, err := gw.GetTask(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.CoerceInt64(args[0])
			fields := map[string]any{}
			for _, kv := range sets {
				key, value, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid --set %q, want key=value", kv)
				}
				fields[key] = value
			}
			if len(fields) == 0 {
				return fmt.Errorf("at least one --set required")
			}
			return withGateway(func(ctx context.Context, gw *store.Gateway, cfg *config.Config, log *slog.Logger) error {
				t, err := gw.UpdateTask(ctx, id, fields)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field to set, key=value (repeatable)")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.CoerceInt64(args[0])
			return withGateway(func(ctx context.Context, gw *store.Gateway, cfg *config.Config, log *slog.Logger) error {
				if err := gw.DeleteTask(ctx, id); err != nil {
					return err
				}
				fmt.Println("deleted")
				return nil
			})
		},
	}
}

func taskStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Aggregate task statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGateway(func(ctx context.Context, gw *store.Gateway, cfg *config.Config, log *slog.Logger) error {
				stats, err := gw.Stats(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(stats)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Metric", "Value"})
				tw.AppendRow(table.Row{"total_tasks", stats.TotalTasks})
				tw.AppendRow(table.Row{"total_effort", stats.TotalEffort})
				tw.AppendRow(table.Row{"total_hours_incomplete", stats.TotalHoursIncomplete})
				tw.AppendRow(table.Row{"total_tokens", stats.TotalTokens})
				tw.AppendRow(table.Row{"total_cost", fmt.Sprintf("%.4f", stats.TotalCost)})
				for status, n := range stats.StatusCounts {
					tw.AppendRow(table.Row{"status:" + status, n})
				}
				for priority, n := range stats.PriorityCounts {
					tw.AppendRow(table.Row{"priority:" + priority, n})
				}
				for who, hours := range stats.AssignedHours {
					tw.AppendRow(table.Row{"hours:" + who, hours})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func taskEnrichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enrich <id>",
		Short: "Run the model enrichment chain on a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.CoerceInt64(args[0])
			return withGateway(func(ctx context.Context, gw *store.Gateway, cfg *config.Config, log *slog.Logger) error {
				svc := newAssistant(cfg, gw, log)
				t, err := gw.GetTask(ctx, id)
				if err != nil {
					return err
				}
				enriched, usage, err := svc.ProcessTask(ctx, t)
				if err != nil {
					return err
				}
				updated, err := gw.UpdateTask(ctx, id, map[string]any{
					"description":     enriched.Description,
					"category":        string(enriched.Category),
					"effort":          enriched.Effort,
					"risk_analysis":   enriched.RiskAnalysis,
					"mitigation_plan": enriched.MitigationPlan,
					"tokens_gastados": enriched.TokensSpent,
					"costos":          enriched.Cost,
				})
				if err != nil {
					return err
				}
				log.Info("task enriched", "id", id, "tokens", usage.TotalTokens, "cost", usage.Cost)
				return printJSON(updated)
			})
		},
		Args: cobra.ExactArgs(1),
	}
}

func storyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "story", Short: "Manage user stories"}
	cmd.AddCommand(storyListCmd())
	cmd.AddCommand(storyCreateCmd())
	cmd.AddCommand(storyGetCmd())
	cmd.AddCommand(storyDeleteCmd())
	cmd.AddCommand(storyTasksCmd())
	cmd.AddCommand(storyGenerateCmd())
	cmd.AddCommand(storyGenerateTasksCmd())
	return cmd
}

func storyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List user stories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGateway(func(ctx context.Context, gw *store.Gateway, cfg *config.Config, log *slog.Logger) error {
				stories, err := gw.ListStories(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(stories)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Project", "Role", "Goal", "Priority", "Points", "Hours"})
				for _, s := range stories {
					tw.AppendRow(table.Row{
						s.ID, s.Project, s.Role, s.Goal,
						s.Priority.Label(), s.StoryPoints, s.EffortHours,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func storyCreateCmd() *cobra.Command {
	var project, role, goal, reason, description, priority string
	var points int
	var hours float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create user story",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGateway(func(ctx context.Context, gw *store.Gateway, cfg *config.Config, log *slog.Logger) error {
				story := domain.UserStory{
					Project:     project,
					Role:        role,
					Goal:        goal,
					Reason:      reason,
					Description: description,
					Priority:    domain.PriorityFromLabel(priority),
					StoryPoints: points,
					EffortHours: hours,
				}
				created, err := gw.CreateStory(ctx, story)
				if err != nil {
					return err
				}
				return printJSON(created)
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project name")
	cmd.Flags().StringVar(&role, "role", "", "who the story serves")
	cmd.Flags().StringVar(&goal, "goal", "", "what they want")
	cmd.Flags().StringVar(&reason, "reason", "", "why they want it")
	cmd.Flags().StringVar(&description, "description", "", "story description")
	cmd.Flags().StringVar(&priority, "priority", "medium", "low|medium|high|blocking")
	cmd.Flags().IntVar(&points, "points", 0, "story points")
	cmd.Flags().Float64Var(&hours, "hours", 0, "estimated effort hours")
	return cmd
}

func storyGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get user story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.CoerceInt64(args[0])
			return withGateway(func(ctx context.Context, gw *store.Gateway, cfg *config.Config, log *slog.Logger) error {
				story, err := gw.GetStory(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(story)
			})
		},
	}
}

func storyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete user story, keeping its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.CoerceInt64(args[0])
			return withGateway(func(ctx context.Context, gw *store.Gateway, cfg *config.Config, log *slog.Logger) error {
				if err := gw.DeleteStory(ctx, id); err != nil {
					return err
				}
				fmt.Println("deleted")
				return nil
			})
		},
	}
}

func storyTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks <id>",
		Short: "List the tasks attached to a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.CoerceInt64(args[0])
			return withGateway(func(ctx context.Context, gw *store.Gateway, cfg *config.Config, log *slog.Logger) error {
				tasks, err := gw.TasksByStory(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(tasks)
			})
		},
	}
}

func storyGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate and persist a story from a free-text prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			return withGateway(func(ctx context.Context, gw *store.Gateway, cfg *config.Config, log *slog.Logger) error {
				svc := newAssistant(cfg, gw, log)
				story, err := svc.GenerateStory(ctx, prompt)
				if err != nil {
					return err
				}
				return printJSON(story)
			})
		},
	}
}

func storyGenerateTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-tasks <id>",
		Short: "Generate and persist a task list for a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.CoerceInt64(args[0])
			return withGateway(func(ctx context.Context, gw *store.Gateway, cfg *config.Config, log *slog.Logger) error {
				svc := newAssistant(cfg, gw, log)
				tasks, err := svc.GenerateTaskList(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(tasks)
			})
		},
	}
}

func assistCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "assist", Short: "One-off model assistance for task fields"}
	var title, description, category, risks string

	run := func(fn func(ctx context.Context, svc *assistant.Service) (any, error)) error {
		if strings.TrimSpace(title) == "" {
			return fmt.Errorf("--title required")
		}
		return withGateway(func(ctx context.Context, gw *store.Gateway, cfg *config.Config, log *slog.Logger) error {
			out, err := fn(ctx, newAssistant(cfg, gw, log))
			if err != nil {
				return err
			}
			return printJSON(out)
		})
	}

	describe := &cobra.Command{
		Use:   "describe",
		Short: "Generate a task description",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, svc *assistant.Service) (any, error) {
				res, err := svc.Describe(ctx, title)
				return res, err
			})
		},
	}
	categorize := &cobra.Command{
		Use:   "categorize",
		Short: "Categorize a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, svc *assistant.Service) (any, error) {
				c, res, err := svc.Categorize(ctx, title, description)
				if err != nil {
					return nil, err
				}
				return map[string]any{"category": c, "label": c.Label(), "usage": res}, nil
			})
		},
	}
	effort := &cobra.Command{
		Use:   "effort",
		Short: "Estimate the effort in hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, svc *assistant.Service) (any, error) {
				hours, res, err := svc.EstimateEffort(ctx, title, description, category)
				if err != nil {
					return nil, err
				}
				return map[string]any{"effort": hours, "usage": res}, nil
			})
		},
	}
	risksCmd := &cobra.Command{
		Use:   "risks",
		Short: "Analyze execution risks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, svc *assistant.Service) (any, error) {
				res, err := svc.AnalyzeRisks(ctx, title, description, category)
				return res, err
			})
		},
	}
	mitigation := &cobra.Command{
		Use:   "mitigation",
		Short: "Propose a mitigation plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, svc *assistant.Service) (any, error) {
				res, err := svc.ProposeMitigation(ctx, title, description, category, risks)
				return res, err
			})
		},
	}

	for _, sub := range []*cobra.Command{describe, categorize, effort, risksCmd, mitigation} {
		sub.Flags().StringVar(&title, "title", "", "task title")
		sub.Flags().StringVar(&description, "description", "", "task description")
		sub.Flags().StringVar(&category, "category", "", "task category")
		cmd.AddCommand(sub)
	}
	mitigation.Flags().StringVar(&risks, "risks", "", "prior risk analysis")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
