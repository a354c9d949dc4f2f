package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trafficpulse/trafficpulse/internal/commute"
	"github.com/trafficpulse/trafficpulse/internal/events"
	"github.com/trafficpulse/trafficpulse/pkg/geo"
)

func newIndexCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Compute the city-wide congestion index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.Traffic.GetIndex(cmd.Context())
			if err != nil {
				return err
			}
			return opts.printJSON(cmd.OutOrStdout(), snap)
		},
	}
}

func newCompareCommand(opts *rootOptions) *cobra.Command {
	var from, to, modes, departAt string

	cmd := &cobra.Command{
		Use:     "compare",
		Short:   "Compare travel modes between two points",
		Example: `  trafficctl compare --from 41.0,29.0 --to 41.08,29.01 --modes driving,transit`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			depart, err := commute.ParseDepartAt(departAt)
			if err != nil {
				return err
			}

			a, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.Commute.Compare(cmd.Context(), commute.Request{
				From:     from,
				To:       to,
				Modes:    modes,
				DepartAt: depart,
			})
			if err != nil {
				return err
			}
			return opts.printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", `origin as "lat,lng"`)
	cmd.Flags().StringVar(&to, "to", "", `destination as "lat,lng"`)
	cmd.Flags().StringVar(&modes, "modes", "", "comma-separated travel modes (default driving,transit,walking)")
	cmd.Flags().StringVar(&departAt, "depart-at", "", "RFC 3339 departure time (default now)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

// locationFlags holds an optional --lat/--lng pair.
type locationFlags struct {
	lat, lng float64
}

func (l *locationFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&l.lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&l.lng, "lng", 0, "longitude")
	cmd.MarkFlagsRequiredTogether("lat", "lng")
}

// point returns nil unless both flags were given.
func (l *locationFlags) point(cmd *cobra.Command) (*geo.Point, error) {
	if !cmd.Flags().Changed("lat") {
		return nil, nil
	}
	p := geo.Point{Lat: l.lat, Lng: l.lng}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func newEventsCommand(opts *rootOptions) *cobra.Command {
	var loc locationFlags
	var radiusKm float64

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List active and upcoming events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			near, err := loc.point(cmd)
			if err != nil {
				return err
			}

			a, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.Events.Upcoming(cmd.Context(), events.Query{Near: near, RadiusKm: radiusKm})
			if err != nil {
				return err
			}
			return opts.printJSON(cmd.OutOrStdout(), resp)
		},
	}

	loc.register(cmd)
	cmd.Flags().Float64Var(&radiusKm, "radius-km", 0, fmt.Sprintf("search radius around --lat/--lng (default %g)", events.DefaultRadiusKm))

	cmd.AddCommand(newEventsSeedCommand(opts))
	return cmd
}

// errSeedNeedsPostgres is returned when seeding an in-memory events source.
var errSeedNeedsPostgres = errors.New("events seed requires EVENTS_SOURCE=postgres")

func newEventsSeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Write the configured (or built-in) events to PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			repo, ok := a.EventsRepo.(*events.PostgresRepository)
			if !ok {
				return errSeedNeedsPostgres
			}

			items := a.Config.Events.Items
			if len(items) == 0 {
				items = events.DefaultEvents()
			}
			if err := repo.Upsert(cmd.Context(), items); err != nil {
				return err
			}
			return opts.printJSON(cmd.OutOrStdout(), map[string]int{"seeded": len(items)})
		},
	}
}

func newWeatherCommand(opts *rootOptions) *cobra.Command {
	var loc locationFlags

	cmd := &cobra.Command{
		Use:   "weather",
		Short: "Show current weather and the three-hour outlook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loc.point(cmd)
			if err != nil {
				return err
			}

			a, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Weather.GetReport(cmd.Context(), p)
			if err != nil {
				return err
			}
			return opts.printJSON(cmd.OutOrStdout(), report)
		},
	}

	loc.register(cmd)
	return cmd
}
