package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	cl "cafeboss/internal/cli"
	"cafeboss/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "cafe",
		Short:        "咖啡店老闆 cost-and-survival game client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newJoinCmd(&apiBase),
		newLeaveCmd(),
		newStatusCmd(&apiBase),
		newRecipeCmd(&apiBase),
		newOverheadsCmd(&apiBase),
		newStrategyCmd(&apiBase),
		newPriceCmd(&apiBase),
		newCrisisCmd(&apiBase),
		newHistoryCmd(&apiBase),
		newInstructorCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func sessionClient(apiBase *string) (*cl.Client, cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return nil, cl.Session{}, fmt.Errorf("join a team first: %w", err)
	}
	client := newClient(apiBase)
	if sess.BaseURL != "" {
		client.BaseURL = strings.TrimRight(sess.BaseURL, "/")
	}
	client.InstructorToken = sess.InstructorToken
	return client, sess, nil
}

func newJoinCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "join [TEAM]",
		Short: "Join the game with a team name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var team string
			var err error
			if len(args) == 1 {
				team = strings.TrimSpace(args[0])
			}
			if team == "" {
				team, err = promptRequired("Team name")
				if err != nil {
					return err
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.Join(ctx, team)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{Team: team}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Joined as %s.", team))
			return renderTeam(out)
		},
	}
}

func newLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Forget the local team session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Session cleared.")
			return nil
		},
	}
}

func newStatusCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show your team's full record",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := sessionClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Team(ctx, sess.Team)
			if err != nil {
				return err
			}
			return renderTeam(out)
		},
	}
}

func newRecipeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "recipe",
		Short: "Stage 1: pick storefront, bean and milk",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := sessionClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			catalog, err := client.Catalog(ctx)
			if err != nil {
				return err
			}
			styleIDs, beans, milks, err := renderCatalog(catalog)
			if err != nil {
				return err
			}
			if len(styleIDs) == 0 || len(beans) == 0 || len(milks) == 0 {
				return fmt.Errorf("catalog is empty, is the server healthy?")
			}

			styleID, err := promptChoice("Storefront", styleIDs, styleIDs[0])
			if err != nil {
				return err
			}
			bean, err := promptChoice("Bean", beans, beans[0])
			if err != nil {
				return err
			}
			milk, err := promptChoice("Milk", milks, milks[0])
			if err != nil {
				return err
			}

			out, err := client.SubmitRecipe(ctx, sess.Team, strings.ToUpper(styleID), bean, milk, uuid.NewString())
			if err != nil {
				return err
			}
			printSuccess("Recipe locked in.")
			return renderTeam(out)
		},
	}
}

func newOverheadsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "overheads",
		Short: "Stage 2: estimate the monthly indirect costs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := sessionClient(apiBase)
			if err != nil {
				return err
			}

			staff, err := promptInt64("Staff cost / month", 1)
			if err != nil {
				return err
			}
			operating, err := promptInt64("Operating cost (water/power/supplies) / month", 1)
			if err != nil {
				return err
			}
			marketing, err := promptInt64("Marketing budget / month", 1)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.SubmitOverheads(ctx, sess.Team, staff, operating, marketing, uuid.NewString())
			if err != nil {
				return err
			}
			printSuccess("Overheads recorded. Rent and depreciation came from your storefront.")
			return renderTeam(out)
		},
	}
}

func newStrategyCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "strategy",
		Short: "Stage 3: set a sales forecast and profit margin",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := sessionClient(apiBase)
			if err != nil {
				return err
			}

			forecast, err := promptInt64("Monthly sales forecast (cups)", 1)
			if err != nil {
				return err
			}
			margin, err := promptInt64("Target profit margin % (0-200)", 0)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.SubmitStrategy(ctx, sess.Team, forecast, margin, uuid.NewString())
			if err != nil {
				return err
			}
			return renderStrategy(out)
		},
	}
}

func newPriceCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "price",
		Short: "Stage 3: lock the final price and open the shop",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := sessionClient(apiBase)
			if err != nil {
				return err
			}

			final, err := promptInt64("Final price per cup", 1)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.SubmitPrice(ctx, sess.Team, final, uuid.NewString())
			if err != nil {
				return err
			}
			return renderPricing(out)
		},
	}
}

func newCrisisCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "crisis",
		Short: "Face this month's crisis and pick a response",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := sessionClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			event, err := client.CrisisEvent(ctx, sess.Team)
			if err != nil {
				return err
			}
			if err := renderCrisisEvent(event); err != nil {
				return err
			}

			choice, err := promptChoice("Your call", []string{"A", "B", "C"}, "")
			if err != nil {
				return err
			}
			out, err := client.SubmitCrisisChoice(ctx, sess.Team, strings.ToUpper(choice), uuid.NewString())
			if err != nil {
				return err
			}
			return renderCrisisResult(out)
		},
	}
}

func newHistoryCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the month-by-month ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := sessionClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.History(ctx, sess.Team)
			if err != nil {
				return err
			}
			return renderHistory(out)
		},
	}
}

func newInstructorCmd(apiBase *string) *cobra.Command {
	instructor := &cobra.Command{
		Use:   "instructor",
		Short: "Instructor dashboard commands",
	}

	instructor.AddCommand(&cobra.Command{
		Use:   "token",
		Short: "Store the instructor token locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := promptRequired("Instructor token")
			if err != nil {
				return err
			}
			sess, _ := cl.LoadSession()
			sess.InstructorToken = token
			if err := cl.SaveSession(sess); err != nil {
				return err
			}
			printSuccess("Token saved.")
			return nil
		},
	})

	instructor.AddCommand(&cobra.Command{
		Use:   "roster",
		Short: "Show every team's progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := sessionClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Roster(ctx)
			if err != nil {
				return err
			}
			return renderRoster(out)
		},
	})

	instructor.AddCommand(&cobra.Command{
		Use:   "stage",
		Short: "Open a submission stage (0=lobby 1=recipe 2=overheads 3=pricing)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := sessionClient(apiBase)
			if err != nil {
				return err
			}
			stage, err := promptInt64("Stage to open (0-3)", 0)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := client.SetStage(ctx, int(stage)); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Stage %d open.", stage))
			return nil
		},
	})

	instructor.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Wipe all teams and close the stage gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := sessionClient(apiBase)
			if err != nil {
				return err
			}
			confirm, err := promptChoice("Really wipe every team", []string{"yes", "no"}, "no")
			if err != nil {
				return err
			}
			if confirm != "yes" {
				printInfo("Aborted.")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := client.Reset(ctx); err != nil {
				return err
			}
			printSuccess("Game reset.")
			return nil
		},
	})

	return instructor
}
