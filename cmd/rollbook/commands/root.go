package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"rollbook/internal/attendance"
	"rollbook/internal/cli"
	"rollbook/internal/csvio"
	"rollbook/internal/export"
	"rollbook/internal/model"
	"rollbook/internal/render"
	"rollbook/internal/tui"
)

// Root builds the rollbook command tree.
func (a *App) Root() *cli.Command {
	return &cli.Command{
		Name:    "rollbook",
		Summary: "Take class attendance against a rollbook server.",
		Output:  a.Stderr,
		Subcommands: []*cli.Command{
			a.registerCommand(),
			a.loginCommand(),
			a.logoutCommand(),
			a.resetPINCommand(),
			a.whoamiCommand(),
			a.classesCommand(),
			a.classCommand(),
			a.rosterCommand(),
			a.markCommand(),
			a.markAllCommand(),
			a.studentCommand(),
			a.importCommand(),
			a.exportCommand(),
			a.sampleCSVCommand(),
			a.tuiCommand(),
		},
	}
}

// ---------- Account ----------

func (a *App) registerCommand() *cli.Command {
	var name, pin, role string
	return &cli.Command{
		Name:    "register",
		Summary: "Create an account and stay signed in",
		Flags: a.flags("register", func(fs *pflag.FlagSet) {
			fs.StringVar(&name, "name", "", "full name")
			fs.StringVar(&pin, "pin", "", "PIN of 4 or more digits (prompted when empty)")
			fs.StringVar(&role, "role", string(model.RoleTeacher), "teacher or rep")
		}),
		Run: func(args []string) error {
			if pin == "" {
				var err error
				if pin, err = a.readSecret("PIN: "); err != nil {
					return err
				}
			}
			return a.run(func(ctx context.Context, s *session) error {
				err := s.dispatch(ctx, attendance.Register{Name: name, PIN: pin, Role: model.Role(role)})
				if err != nil {
					return err
				}
				fmt.Fprintf(a.Stdout, "Signed in as %s\n", s.view.UserLabel)
				return nil
			})
		},
	}
}

func (a *App) loginCommand() *cli.Command {
	var name, pin string
	var remember bool
	return &cli.Command{
		Name:    "login",
		Summary: "Sign in",
		Flags: a.flags("login", func(fs *pflag.FlagSet) {
			fs.StringVar(&name, "name", "", "full name")
			fs.StringVar(&pin, "pin", "", "PIN (prompted when empty)")
			fs.BoolVar(&remember, "remember", false, "stay signed in after this login session ends")
		}),
		Run: func(args []string) error {
			if pin == "" && name != "" {
				var err error
				if pin, err = a.readSecret("PIN: "); err != nil {
					return err
				}
			}
			return a.run(func(ctx context.Context, s *session) error {
				err := s.dispatch(ctx, attendance.Login{Name: name, PIN: pin, Remember: remember})
				if err != nil {
					return err
				}
				fmt.Fprintf(a.Stdout, "Signed in as %s\n", s.view.UserLabel)
				return nil
			})
		},
	}
}

func (a *App) logoutCommand() *cli.Command {
	return &cli.Command{
		Name:    "logout",
		Summary: "Sign out and forget the stored session",
		Flags:   a.flags("logout", nil),
		Run: func(args []string) error {
			return a.run(func(ctx context.Context, s *session) error {
				if err := s.dispatch(ctx, attendance.Logout{}); err != nil {
					return err
				}
				fmt.Fprintln(a.Stdout, "Signed out.")
				return nil
			})
		},
	}
}

func (a *App) resetPINCommand() *cli.Command {
	var name, newPIN, confirm string
	return &cli.Command{
		Name:    "reset-pin",
		Summary: "Replace the PIN of a registered user",
		Flags: a.flags("reset-pin", func(fs *pflag.FlagSet) {
			fs.StringVar(&name, "name", "", "registered full name")
			fs.StringVar(&newPIN, "new-pin", "", "new PIN (prompted when empty)")
			fs.StringVar(&confirm, "confirm", "", "new PIN again (prompted when empty)")
		}),
		Run: func(args []string) error {
			var err error
			if newPIN == "" {
				if newPIN, err = a.readSecret("New PIN: "); err != nil {
					return err
				}
			}
			if confirm == "" {
				if confirm, err = a.readSecret("Confirm PIN: "); err != nil {
					return err
				}
			}
			return a.run(func(ctx context.Context, s *session) error {
				if err := s.dispatch(ctx, attendance.ResetPIN{Name: name, NewPIN: newPIN, Confirm: confirm}); err != nil {
					return err
				}
				fmt.Fprintln(a.Stdout, "PIN updated. Sign in with your new PIN.")
				return nil
			})
		},
	}
}

func (a *App) whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:    "whoami",
		Summary: "Show the signed-in user",
		Flags:   a.flags("whoami", nil),
		Run: func(args []string) error {
			return a.authed(func(ctx context.Context, s *session) error {
				fmt.Fprintln(a.Stdout, s.view.UserLabel)
				return nil
			})
		},
	}
}

// ---------- Classes ----------

func (a *App) classesCommand() *cli.Command {
	return &cli.Command{
		Name:    "classes",
		Summary: "List your classes",
		Flags:   a.flags("classes", nil),
		Run: func(args []string) error {
			return a.authed(func(ctx context.Context, s *session) error {
				printClasses(a.Stdout, s.view)
				return nil
			})
		},
	}
}

func (a *App) classCommand() *cli.Command {
	var confirmed bool
	return &cli.Command{
		Name:    "class",
		Summary: "Create, rename or delete a class",
		Subcommands: []*cli.Command{
			{
				Name:    "create",
				Summary: "Create a class and select it",
				Usage:   "<name>",
				Flags:   a.flags("create", nil),
				Run: func(args []string) error {
					name, err := oneArg(args, "class name")
					if err != nil {
						return err
					}
					return a.authed(func(ctx context.Context, s *session) error {
						if err := s.dispatch(ctx, attendance.CreateClass{Name: name}); err != nil {
							return err
						}
						fmt.Fprintf(a.Stdout, "Created class %s (id %d)\n", s.view.ClassName, s.view.ClassID)
						return nil
					})
				},
			},
			{
				Name:    "rename",
				Summary: "Rename the selected class",
				Usage:   "<new name> [--class <id|name>]",
				Flags:   a.flags("rename", nil),
				Run: func(args []string) error {
					name, err := oneArg(args, "new class name")
					if err != nil {
						return err
					}
					return a.authed(func(ctx context.Context, s *session) error {
						if err := s.dispatch(ctx, attendance.RenameClass{Name: name}); err != nil {
							return err
						}
						fmt.Fprintf(a.Stdout, "Renamed class to %s\n", s.view.ClassName)
						return nil
					})
				},
			},
			{
				Name:    "delete",
				Summary: "Delete the selected class with its students and attendance",
				Usage:   "--yes [--class <id|name>]",
				Flags: a.flags("delete", func(fs *pflag.FlagSet) {
					fs.BoolVar(&confirmed, "yes", false, "confirm the deletion")
				}),
				Run: func(args []string) error {
					return a.authed(func(ctx context.Context, s *session) error {
						name := s.view.ClassName
						if s.view.ClassID == 0 {
							return attendance.ErrNoClass
						}
						if !confirmed {
							return cli.Usagef("refusing to delete %q without --yes", name)
						}
						if err := s.dispatch(ctx, attendance.DeleteClass{}); err != nil {
							return err
						}
						fmt.Fprintf(a.Stdout, "Deleted class %s\n", name)
						return nil
					})
				},
			},
		},
	}
}

// ---------- Roster ----------

func (a *App) rosterCommand() *cli.Command {
	var search string
	return &cli.Command{
		Name:    "roster",
		Summary: "Show the roster and attendance of the selected class",
		Flags: a.flags("roster", func(fs *pflag.FlagSet) {
			fs.StringVar(&search, "search", "", "only list students whose name or ID contains this text")
		}),
		Run: func(args []string) error {
			return a.authed(func(ctx context.Context, s *session) error {
				if search != "" {
					if err := s.dispatch(ctx, attendance.SetSearch{Text: search}); err != nil {
						return err
					}
				}
				printRoster(a.Stdout, s.view)
				return nil
			})
		},
	}
}

func (a *App) markCommand() *cli.Command {
	return &cli.Command{
		Name:    "mark",
		Summary: "Set one student's status for the date",
		Usage:   "<student id|uid> present|absent|unmarked",
		Flags:   a.flags("mark", nil),
		Run: func(args []string) error {
			if len(args) != 2 {
				return cli.Usagef("usage: rollbook mark <student id|uid> present|absent|unmarked")
			}
			status, err := parseStatus(args[1])
			if err != nil {
				return err
			}
			return a.authed(func(ctx context.Context, s *session) error {
				if err := s.dispatch(ctx, attendance.SetStatus{Ref: args[0], Status: status}); err != nil {
					return err
				}
				fmt.Fprintf(a.Stdout, "%s: %s on %s\n", args[0], status.Label(), s.view.Date)
				return nil
			})
		},
	}
}

func (a *App) markAllCommand() *cli.Command {
	return &cli.Command{
		Name:    "mark-all",
		Summary: "Set every student's status for the date",
		Usage:   "present|absent|unmarked",
		Flags:   a.flags("mark-all", nil),
		Run: func(args []string) error {
			arg, err := oneArg(args, "status")
			if err != nil {
				return err
			}
			status, err := parseStatus(arg)
			if err != nil {
				return err
			}
			return a.authed(func(ctx context.Context, s *session) error {
				if err := s.dispatch(ctx, attendance.MarkAll{Status: status}); err != nil {
					return err
				}
				printCounts(a.Stdout, s.view.Counts)
				return nil
			})
		},
	}
}

// ---------- Students ----------

func (a *App) studentCommand() *cli.Command {
	return &cli.Command{
		Name:    "student",
		Summary: "Add or remove a student in the selected class",
		Subcommands: []*cli.Command{
			{
				Name:    "add",
				Summary: "Add a student",
				Usage:   "<name> <student id>",
				Flags:   a.flags("add", nil),
				Run: func(args []string) error {
					if len(args) != 2 {
						return cli.Usagef("usage: rollbook student add <name> <student id>")
					}
					return a.authed(func(ctx context.Context, s *session) error {
						if err := s.dispatch(ctx, attendance.AddStudent{Name: args[0], StudentUID: args[1]}); err != nil {
							return err
						}
						fmt.Fprintf(a.Stdout, "Added %s (%s) to %s\n", strings.TrimSpace(args[0]), strings.TrimSpace(args[1]), s.view.ClassName)
						return nil
					})
				},
			},
			{
				Name:    "remove",
				Summary: "Remove a student",
				Usage:   "<student id|uid>",
				Flags:   a.flags("remove", nil),
				Run: func(args []string) error {
					ref, err := oneArg(args, "student")
					if err != nil {
						return err
					}
					return a.authed(func(ctx context.Context, s *session) error {
						if err := s.dispatch(ctx, attendance.RemoveStudent{Ref: ref}); err != nil {
							return err
						}
						fmt.Fprintf(a.Stdout, "Removed %s from %s\n", ref, s.view.ClassName)
						return nil
					})
				},
			},
		},
	}
}

func (a *App) importCommand() *cli.Command {
	return &cli.Command{
		Name:    "import",
		Summary: "Import students from a CSV file (- reads stdin)",
		Usage:   "<file|->",
		Flags:   a.flags("import", nil),
		Run: func(args []string) error {
			path, err := oneArg(args, "CSV file")
			if err != nil {
				return err
			}
			text, err := a.readInput(path)
			if err != nil {
				return err
			}
			return a.authed(func(ctx context.Context, s *session) error {
				importCSV := &attendance.ImportCSV{Text: text}
				if err := s.dispatch(ctx, importCSV); err != nil {
					return err
				}
				fmt.Fprintln(a.Stdout, importCSV.Summary.Message())
				return nil
			})
		},
	}
}

func (a *App) readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(a.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// ---------- Export ----------

func (a *App) exportCommand() *cli.Command {
	var out string
	var save bool
	exportAs := func(name string, content func(render.View) string, filename func(string) string) *cli.Command {
		return &cli.Command{
			Name:    name,
			Summary: "Write the " + name + " export of the selected class and date",
			Flags: a.flags(name, func(fs *pflag.FlagSet) {
				fs.StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
				fs.BoolVar(&save, "save", false, "write to the default file name in the current directory")
			}),
			Run: func(args []string) error {
				return a.authed(func(ctx context.Context, s *session) error {
					text := content(s.view)
					if text == "" {
						return attendance.ErrNoClass
					}
					path := out
					if path == "" && save {
						path = filename(s.view.Date)
					}
					if path == "" {
						fmt.Fprintln(a.Stdout, text)
						return nil
					}
					if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
						return fmt.Errorf("write export: %w", err)
					}
					fmt.Fprintf(a.Stdout, "Wrote %s\n", path)
					return nil
				})
			},
		}
	}
	return &cli.Command{
		Name:    "export",
		Summary: "Export attendance as CSV or share text",
		Subcommands: []*cli.Command{
			exportAs("csv", func(v render.View) string { return v.CSV }, export.CSVFilename),
			exportAs("text", func(v render.View) string { return v.ShareText }, export.TextFilename),
		},
	}
}

func (a *App) sampleCSVCommand() *cli.Command {
	return &cli.Command{
		Name:    "sample-csv",
		Summary: "Print a CSV template for import",
		Run: func(args []string) error {
			fmt.Fprintln(a.Stdout, csvio.SampleCSV)
			return nil
		},
	}
}

func (a *App) tuiCommand() *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Summary: "Open the interactive roster",
		Flags:   a.flags("tui", nil),
		Run: func(args []string) error {
			return a.authed(func(ctx context.Context, s *session) error {
				program := tea.NewProgram(
					tui.New(ctx, s.svc, s.view),
					tea.WithAltScreen(),
					tea.WithInput(a.Stdin),
					tea.WithOutput(a.Stdout),
				)
				_, err := program.Run()
				return err
			})
		},
	}
}

// ---------- Output ----------

func oneArg(args []string, what string) (string, error) {
	if len(args) != 1 {
		return "", cli.Usagef("expected one argument: %s", what)
	}
	return args[0], nil
}

func parseStatus(value string) (model.Status, error) {
	status, err := model.ParseStatus(strings.ToLower(value))
	if err != nil {
		return status, cli.Usagef("%v (want present, absent or unmarked)", err)
	}
	return status, nil
}

func printClasses(w io.Writer, view render.View) {
	if view.NoClasses {
		fmt.Fprintln(w, "No classes yet. Create one with 'rollbook class create <name>'.")
		return
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tSTUDENTS")
	for _, card := range view.Classes {
		marker := ""
		if card.Active {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\n", marker, card.Class.ID, card.Class.Name, card.Class.StudentCount)
	}
	tw.Flush()
}

func printCounts(w io.Writer, counts render.Counts) {
	fmt.Fprintf(w, "%s %d  %s %d  %s %d\n",
		model.Present.Label(), counts.Present,
		model.Absent.Label(), counts.Absent,
		model.Unmarked.Label(), counts.Unmarked)
}

func printRoster(w io.Writer, view render.View) {
	fmt.Fprintf(w, "%s  %s\n", view.ClassName, view.SummaryDate)
	if view.ClassID != 0 {
		printCounts(w, view.Counts)
	}
	if len(view.Rows) == 0 {
		fmt.Fprintln(w, view.EmptyMessage)
		return
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTUDENT ID\tSTATUS")
	for _, row := range view.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", row.Student.ID, row.Student.Name, row.Student.StudentUID, row.Status.Label())
	}
	tw.Flush()
}
