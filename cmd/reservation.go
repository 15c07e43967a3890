package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/pivo/internal/booking"
	"github.com/example/pivo/internal/domain/reservation"
)

func newReservationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reservation",
		Aliases: []string{"res"},
		Short:   "Manage reservations (non-API)",
	}
	cmd.AddCommand(newReservationCreateCmd())
	cmd.AddCommand(newReservationListCmd())
	cmd.AddCommand(newReservationShowCmd())
	cmd.AddCommand(newReservationEditCmd())
	cmd.AddCommand(newReservationRemoveCmd())
	cmd.AddCommand(newReservationTransitionCmd("confirm", "Confirm a pending reservation", (*booking.Engine).ConfirmReservation))
	cmd.AddCommand(newReservationTransitionCmd("cancel", "Cancel a pending or confirmed reservation", (*booking.Engine).CancelReservation))
	cmd.AddCommand(newReservationTransitionCmd("complete", "Mark a confirmed reservation as visited", (*booking.Engine).CompleteReservation))
	return cmd
}

// withEngine opens the app, runs fn and drains pending writes.
func withEngine(fn func(ctx context.Context, e *booking.Engine) error) error {
	ctx := context.Background()
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a.engine)
}

func newReservationCreateCmd() *cobra.Command {
	var (
		restaurantID string
		date         string
		slot         string
		guests       int
		requests     string
		items        []string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Book a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := parseItems(items)
			if err != nil {
				return err
			}
			return withEngine(func(ctx context.Context, e *booking.Engine) error {
				d, err := time.ParseInLocation(reservation.DateLayout, date, e.Rules().Loc())
				if err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
				r, err := e.CreateReservation(ctx, booking.CreateRequest{
					RestaurantID:    restaurantID,
					Date:            d,
					Time:            slot,
					Guests:          guests,
					SpecialRequests: requests,
					Items:           sel,
				})
				if err != nil {
					return err
				}
				printReservation(cmd.OutOrStdout(), r, e.Cost(ctx, r))
				return nil
			})
		},
	}

	c.Flags().StringVar(&restaurantID, "restaurant", "", "restaurant id")
	c.Flags().StringVar(&date, "date", "", "YYYY-MM-DD")
	c.Flags().StringVar(&slot, "time", "", "slot, e.g. 19:00")
	c.Flags().IntVar(&guests, "guests", 2, "number of guests")
	c.Flags().StringVar(&requests, "requests", "", "special requests")
	c.Flags().StringSliceVar(&items, "item", nil, "pre-order menu item as id or id:quantity (repeatable)")
	_ = c.MarkFlagRequired("restaurant")
	_ = c.MarkFlagRequired("date")
	_ = c.MarkFlagRequired("time")
	return c
}

func newReservationListCmd() *cobra.Command {
	var (
		statuses     []string
		restaurantID string
		scope        string
		query        string
		total        bool
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List reservations",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := booking.Filter{RestaurantID: restaurantID, Query: query}
			for _, s := range statuses {
				st, err := reservation.ParseStatus(s)
				if err != nil {
					return err
				}
				f.Statuses = append(f.Statuses, st)
			}
			sc, err := booking.ParseScope(scope)
			if err != nil {
				return err
			}
			f.Scope = sc

			return withEngine(func(ctx context.Context, e *booking.Engine) error {
				out := cmd.OutOrStdout()
				for _, r := range e.ListReservations(f) {
					printReservation(out, r, e.Cost(ctx, r))
				}
				if total {
					fmt.Fprintf(out, "total=%.2f\n", e.TotalAmount(ctx, f))
				}
				return nil
			})
		},
	}
	c.Flags().StringSliceVar(&statuses, "status", nil, "pending, confirmed, cancelled or completed (repeatable)")
	c.Flags().StringVar(&restaurantID, "restaurant", "", "restaurant id")
	c.Flags().StringVar(&scope, "scope", "", "active, history or upcoming")
	c.Flags().StringVar(&query, "q", "", "search restaurant name or reservation id")
	c.Flags().BoolVar(&total, "total", false, "print the summed total")
	return c
}

func newReservationShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a reservation with its cost breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *booking.Engine) error {
				d, err := e.Details(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printReservation(out, d.Reservation, d.Cost)
				if d.Reservation.SpecialRequests != nil {
					fmt.Fprintf(out, "  requests=%q\n", *d.Reservation.SpecialRequests)
				}
				for _, l := range d.Lines {
					fmt.Fprintf(out, "  %s x%d = %.2f\n", l.Item.Name, l.Quantity, l.Subtotal)
				}
				fmt.Fprintf(out, "  deposit=%.2f preorder=%.2f\n", d.Cost.Deposit, d.Cost.Preorder)
				return nil
			})
		},
	}
}

func newReservationEditCmd() *cobra.Command {
	var (
		date     string
		slot     string
		guests   int
		requests string
		items    []string
	)

	c := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change date, time, guests, requests or pre-order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			return withEngine(func(ctx context.Context, e *booking.Engine) error {
				var ch booking.Changes
				if flags.Changed("date") {
					d, err := time.ParseInLocation(reservation.DateLayout, date, e.Rules().Loc())
					if err != nil {
						return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
					}
					ch.Date = &d
				}
				if flags.Changed("time") {
					ch.Time = &slot
				}
				if flags.Changed("guests") {
					ch.Guests = &guests
				}
				if flags.Changed("requests") {
					ch.SpecialRequests = &requests
				}
				if flags.Changed("item") {
					sel, err := parseItems(items)
					if err != nil {
						return err
					}
					ch.Items = &sel
				}
				r, err := e.EditReservation(ctx, args[0], ch)
				if err != nil {
					return err
				}
				printReservation(cmd.OutOrStdout(), r, e.Cost(ctx, r))
				return nil
			})
		},
	}
	c.Flags().StringVar(&date, "date", "", "YYYY-MM-DD")
	c.Flags().StringVar(&slot, "time", "", "slot, e.g. 19:00")
	c.Flags().IntVar(&guests, "guests", 0, "number of guests")
	c.Flags().StringVar(&requests, "requests", "", "special requests; empty clears them")
	c.Flags().StringSliceVar(&items, "item", nil, "replace the pre-order; id or id:quantity (repeatable)")
	return c
}

func newReservationRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Cancel a reservation if needed and delete it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *booking.Engine) error {
				r, err := e.RemoveReservation(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed id=%s\n", r.ID)
				return nil
			})
		},
	}
}

func newReservationTransitionCmd(use, short string, op func(*booking.Engine, context.Context, string) (reservation.Reservation, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *booking.Engine) error {
				r, err := op(e, ctx, args[0])
				if err != nil {
					return err
				}
				printReservation(cmd.OutOrStdout(), r, e.Cost(ctx, r))
				return nil
			})
		},
	}
}

// parseItems reads "id" or "id:quantity" tokens.
func parseItems(tokens []string) ([]reservation.Selection, error) {
	out := make([]reservation.Selection, 0, len(tokens))
	for _, tok := range tokens {
		id, qty, found := strings.Cut(strings.TrimSpace(tok), ":")
		n := 1
		if found {
			v, err := strconv.Atoi(qty)
			if err != nil {
				return nil, fmt.Errorf("--item %q: quantity must be a number", tok)
			}
			n = v
		}
		out = append(out, reservation.Selection{MenuItemID: id, Quantity: n})
	}
	return out, nil
}

func printReservation(w io.Writer, r reservation.Reservation, c reservation.Cost) {
	fmt.Fprintf(w, "id=%s restaurant=%q date=%s time=%s guests=%d status=%s total=%.2f\n",
		r.ID, r.RestaurantName, r.Date.Format(reservation.DateLayout), r.Time, r.NumberOfGuests, r.Status, c.Total)
}
