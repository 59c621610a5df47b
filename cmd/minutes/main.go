package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-minutes/internal/adapter/mcpserver"
	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
	"github.com/johnquangdev/meeting-minutes/internal/infrastructure/database"
	"github.com/johnquangdev/meeting-minutes/internal/usecase/minutes"
	"github.com/johnquangdev/meeting-minutes/pkg/config"
	"github.com/johnquangdev/meeting-minutes/pkg/flowchart"
	"github.com/johnquangdev/meeting-minutes/pkg/jwt"
)

func main() {
	cmd := &cli.Command{
		Name:  "minutes",
		Usage: "Turn meeting recordings into structured minutes",
		Commands: []*cli.Command{
			processCommand(),
			renderCommand(),
			migrateCommand(),
			tokenCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func processCommand() *cli.Command {
	return &cli.Command{
		Name:  "process",
		Usage: "Run the pipeline on a local recording",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "audio", Aliases: []string{"a"}, Usage: "Path to the recording", Required: true},
			&cli.StringFlag{Name: "participants", Aliases: []string{"p"}, Usage: "Comma separated participant names"},
			&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Usage: "Language code", Value: "en"},
			&cli.StringFlag{Name: "api-key", Usage: "Model API key", Sources: cli.EnvVars("AI_API_KEY")},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write minutes JSON here instead of stdout"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer logger.Sync()

			pipeline, err := minutes.FromConfig(cfg, logger)
			if err != nil {
				return err
			}

			path := cmd.String("audio")
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read audio: %w", err)
			}

			apiKey := cmd.String("api-key")
			if apiKey == "" {
				apiKey = cfg.AI.APIKey
			}

			result, err := pipeline.ProduceMinutesFromAudio(ctx,
				minutes.Audio{Data: data, MIMEType: audioMIME(path)},
				splitList(cmd.String("participants")),
				cmd.String("language"),
				apiKey,
			)
			if err != nil {
				return err
			}
			return writeJSON(cmd.String("out"), result)
		},
	}
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "Print the Mermaid flowchart for a graph JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "graph", Aliases: []string{"g"}, Usage: "Graph JSON file, - for stdin", Value: "-"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			var r io.Reader = os.Stdin
			if path := cmd.String("graph"); path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			var g flowchart.Graph
			if err := json.NewDecoder(r).Decode(&g); err != nil {
				return fmt.Errorf("decode graph: %w", err)
			}
			fmt.Println(flowchart.Render(g))
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the embedded database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "down", Usage: "Roll back instead of applying"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.NewPostgresDB(cfg)
			if err != nil {
				return err
			}
			defer database.CloseDB(db)

			n, err := database.Migrate(db, cmd.Bool("down"))
			if err != nil {
				return err
			}
			log.Printf("✅ Successfully applied %d migration(s)!", n)
			return nil
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue an access token for local testing",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user-id", Usage: "User UUID, random when empty"},
			&cli.StringFlag{Name: "company-id", Usage: "Company UUID", Required: true},
			&cli.StringFlag{Name: "email", Value: "dev@example.com"},
			&cli.StringFlag{Name: "role", Usage: "GeneralAdmin, CompanyAdmin or User", Value: string(entities.RoleUser)},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			userID := uuid.New()
			if raw := cmd.String("user-id"); raw != "" {
				if userID, err = uuid.Parse(raw); err != nil {
					return fmt.Errorf("invalid user id: %w", err)
				}
			}
			companyID, err := uuid.Parse(cmd.String("company-id"))
			if err != nil {
				return fmt.Errorf("invalid company id: %w", err)
			}
			role := entities.Role(cmd.String("role"))
			if !role.IsValid() {
				return fmt.Errorf("unknown role %q", role)
			}

			manager := jwt.NewManager(cfg.JWT.AccessSecret, cfg.JWT.AccessExpiry, cfg.JWT.Issuer)
			token, err := manager.GenerateAccessToken(userID, companyID, cmd.String("email"), string(role))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the pipeline tools over MCP stdio",
		Action: func(_ context.Context, _ *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// stdout carries the protocol; zap production logs go to stderr
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			pipeline, err := minutes.FromConfig(cfg, logger)
			if err != nil {
				return err
			}
			return mcpserver.New(pipeline, cfg.AI.APIKey, pipeline.ChunkSize(), logger).ServeStdio()
		},
	}
}

// audioTypes covers formats missing from the platform mime table
var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

func audioMIME(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		_, err = fmt.Println(string(b))
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
