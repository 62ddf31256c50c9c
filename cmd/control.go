package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-openapi/swag"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jake-scott/contxt-cli/internal/pkg/controlapi"
	"github.com/jake-scott/contxt-cli/internal/pkg/models"
)

var _controlCmdOpts struct {
	facilityID     int
	event          string
	message        string
	name           string
	id             int
	organizationID string
	enrolledOnly   bool
}

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Facility control functions",
}

var controlGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Fetch facility control objects",
}

var controlCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create facility control objects",
}

var controlGetOrganizationsCmd = &cobra.Command{
	Use:   "organizations",
	Short: "List organizations",
	Args:  cobra.NoArgs,

	RunE: withControl(func(ctx context.Context, control *controlapi.Service, args []string) error {
		orgs, err := control.GetOrganizations(ctx)
		if err != nil {
			return err
		}

		return printResult(orgs, []string{"ID", "NAME"}, func(add func(cols ...interface{})) {
			for _, o := range orgs {
				add(o.ID, o.Name)
			}
		})
	}),
}

var controlGetFacilitiesCmd = &cobra.Command{
	Use:   "facilities",
	Short: "List facilities",
	Args:  cobra.NoArgs,

	RunE: withControl(func(ctx context.Context, control *controlapi.Service, args []string) error {
		facilities, err := control.GetFacilities(ctx)
		if err != nil {
			return err
		}

		return printResult(facilities, []string{"ID", "NAME", "ORGANIZATION"}, func(add func(cols ...interface{})) {
			for _, f := range facilities {
				add(f.ID, f.Name, f.OrganizationID)
			}
		})
	}),
}

var controlGetFacilityCmd = &cobra.Command{
	Use:   "facility <facility-id>",
	Short: "Show a facility with its controllable components",
	Args:  cobra.ExactArgs(1),

	RunE: withControl(func(ctx context.Context, control *controlapi.Service, args []string) error {
		id, err := intArg("facility-id", args[0])
		if err != nil {
			return err
		}

		facility, err := control.GetFacility(ctx, id)
		if err != nil {
			return err
		}

		return printResult(facility, []string{"COMPONENT", "LABEL", "DESCRIPTION"}, func(add func(cols ...interface{})) {
			for _, c := range facility.Controllables.Items() {
				add(c.Slug, c.Label, c.Description)
			}
		})
	}),
}

var controlGetEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List the control event proposals for a facility",
	Args:  cobra.NoArgs,

	RunE: withControl(func(ctx context.Context, control *controlapi.Service, args []string) error {
		facility, err := control.GetFacility(ctx, _controlCmdOpts.facilityID)
		if err != nil {
			return err
		}

		proposals := facility.EventProposals.Items()
		return printResult(proposals, []string{"ID", "STATE", "START", "END"}, func(add func(cols ...interface{})) {
			for _, p := range proposals {
				add(p.ID, p.CurrentState, p.StartTime, p.EndTime)
			}
		})
	}),
}

var controlGetEventCmd = &cobra.Command{
	Use:   "event <control-event-id>",
	Short: "Show a control event and its log",
	Args:  cobra.ExactArgs(1),

	RunE: withControl(func(ctx context.Context, control *controlapi.Service, args []string) error {
		event, err := control.GetControlEvent(ctx, args[0])
		if err != nil {
			return err
		}

		return printResult(event, []string{"TIME", "TYPE", "FROM", "TO", "LABEL"}, func(add func(cols ...interface{})) {
			for _, l := range event.Logs.Items() {
				add(l.EventTime, l.EventType, l.PreviousState, l.CurrentState, l.Label)
			}
		})
	}),
}

var controlGetEdgeNodesCmd = &cobra.Command{
	Use:   "edge-nodes",
	Short: "List edge nodes, optionally for one facility",
	Args:  cobra.NoArgs,

	RunE: withControl(func(ctx context.Context, control *controlapi.Service, args []string) error {
		nodes, err := control.GetEdgeNodes(ctx, _controlCmdOpts.facilityID)
		if err != nil {
			return err
		}

		return printResult(nodes, []string{"CLIENT ID", "FACILITY", "ORGANIZATION", "LAST FETCH"}, func(add func(cols ...interface{})) {
			for _, n := range nodes {
				add(n.ClientID, n.FacilityID, n.OrganizationID, n.LastFetchTime)
			}
		})
	}),
}

var controlGetEdgeNodeCmd = &cobra.Command{
	Use:   "edge-node <client-id>",
	Short: "Show an edge node and the components it controls",
	Args:  cobra.ExactArgs(1),

	RunE: withControl(func(ctx context.Context, control *controlapi.Service, args []string) error {
		node, err := control.GetEdgeNode(ctx, args[0])
		if err != nil {
			return err
		}

		return printResult(node, []string{"COMPONENT", "LABEL"}, func(add func(cols ...interface{})) {
			for _, c := range node.Components.Items() {
				add(c.Slug, c.Label)
			}
		})
	}),
}

var controlGetEdgeNodeEventsCmd = &cobra.Command{
	Use:   "edge-node-events",
	Short: "List the control events active for the configured edge node client",
	Args:  cobra.NoArgs,

	RunE: withControl(func(ctx context.Context, control *controlapi.Service, args []string) error {
		events, err := control.GetEdgeControlEvents(ctx)
		if err != nil {
			return err
		}

		return printResult(events, []string{"COMPONENT", "EVENT", "DEFINITION", "STATE", "START", "END"}, func(add func(cols ...interface{})) {
			for _, e := range events {
				ev := e.ControlEvent
				add(e.ComponentSlug, ev.ID, ev.DefinitionSlug(), ev.State(), ev.StartTime, ev.EndTime)
			}
		})
	}),
}

var controlGetDefinitionsCmd = &cobra.Command{
	Use:   "definitions [slug]",
	Short: "List state definitions, or show one definition document",
	Args:  cobra.MaximumNArgs(1),

	RunE: withControl(func(ctx context.Context, control *controlapi.Service, args []string) error {
		if len(args) == 1 {
			def, err := control.GetStateDefinition(ctx, args[0])
			if err != nil {
				return err
			}
			return printDefinition(def)
		}

		defs, err := control.GetStateDefinitions(ctx)
		if err != nil {
			return err
		}

		return printResult(defs, []string{"SLUG", "LABEL", "DESCRIPTION"}, func(add func(cols ...interface{})) {
			for _, d := range defs {
				add(d.Slug, d.Label, d.Description)
			}
		})
	}),
}

var controlTransitionCmd = &cobra.Command{
	Use:   "transition <control-event-id>",
	Short: "Fire a transition event on a control event",
	Args:  cobra.ExactArgs(1),

	RunE: withControl(func(ctx context.Context, control *controlapi.Service, args []string) error {
		input := controlapi.TransitionInput{
			ControlEventID:  args[0],
			TransitionEvent: _controlCmdOpts.event,
		}
		if _controlCmdOpts.message != "" {
			input.Message = swag.String(_controlCmdOpts.message)
		}

		result, err := control.Transition(ctx, input)
		if err != nil {
			return err
		}

		return printResult(result, []string{"EVENT", "STATE"}, func(add func(cols ...interface{})) {
			add(args[0], result.NewState())
		})
	}),
}

var controlCreateFacilityCmd = &cobra.Command{
	Use:   "facility",
	Short: "Create a facility",
	Args:  cobra.NoArgs,

	RunE: withControl(func(ctx context.Context, control *controlapi.Service, args []string) error {
		facility, err := control.CreateFacility(ctx, controlapi.FacilityInput{
			ID:             _controlCmdOpts.id,
			Name:           _controlCmdOpts.name,
			OrganizationID: _controlCmdOpts.organizationID,
		})
		if err != nil {
			return err
		}

		return printResult(facility, []string{"ID", "NAME", "ORGANIZATION"}, func(add func(cols ...interface{})) {
			add(facility.ID, facility.Name, facility.OrganizationID)
		})
	}),
}

var controlGetControllablesCmd = &cobra.Command{
	Use:   "controllables <facility-id> [slug]",
	Short: "List the controllable components of a facility",
	Args:  cobra.RangeArgs(1, 2),

	RunE: withControl(func(ctx context.Context, control *controlapi.Service, args []string) error {
		facilityID, err := intArg("facility-id", args[0])
		if err != nil {
			return err
		}

		var slug string
		if len(args) > 1 {
			slug = args[1]
		}

		components, err := control.GetControllables(ctx, facilityID, slug)
		if err != nil {
			return err
		}

		return printResult(components, []string{"ID", "SLUG", "LABEL", "SCHEDULABLE"}, func(add func(cols ...interface{})) {
			for _, c := range components {
				add(c.ID, c.Slug, c.Label, c.IsSchedulable)
			}
		})
	}),
}

var controlGetProjectsCmd = &cobra.Command{
	Use:   "projects [facility-id]",
	Short: "List projects, optionally only those a facility takes part in",
	Args:  cobra.MaximumNArgs(1),

	RunE: withControl(func(ctx context.Context, control *controlapi.Service, args []string) error {
		var facilityID int
		if len(args) > 0 {
			var err error
			if facilityID, err = intArg("facility-id", args[0]); err != nil {
				return err
			}
		}

		projects, err := control.GetProjects(ctx, facilityID)
		if err != nil {
			return err
		}

		return printResult(projects, []string{"ID", "NAME", "DESCRIPTION"}, func(add func(cols ...interface{})) {
			for _, p := range projects {
				add(p.ID, p.Name, p.Description)
			}
		})
	}),
}

var controlGetProjectCmd = &cobra.Command{
	Use:   "project <project-id>",
	Short: "Show a project with its success metrics and facilities",
	Args:  cobra.ExactArgs(1),

	RunE: withControl(func(ctx context.Context, control *controlapi.Service, args []string) error {
		project, err := control.GetProject(ctx, args[0], _controlCmdOpts.enrolledOnly)
		if err != nil {
			return err
		}

		return printResult(project, []string{"KIND", "ID", "NAME", "DETAIL"}, projectRows(project))
	}),
}

// projectRows lays a project out as one row for itself followed by its
// metrics and facilities
func projectRows(p *models.Project) func(add func(cols ...interface{})) {
	return func(add func(cols ...interface{})) {
		add("project", p.ID, p.Name, p.Description)
		for _, m := range p.Metrics.Items() {
			add("metric", m.ID, m.Name, m.Units)
		}
		for _, fp := range p.Facilities.Items() {
			if fp.Facility == nil {
				continue
			}
			add("facility", fp.Facility.ID, fp.Facility.Name, fp.EnrollmentStatus)
		}
	}
}

func init() {
	controlGetEventsCmd.Flags().IntVar(&_controlCmdOpts.facilityID, "facility-id", 0, "facility to list event proposals for")
	errPanic(controlGetEventsCmd.MarkFlagRequired("facility-id"))
	controlGetEdgeNodesCmd.Flags().IntVar(&_controlCmdOpts.facilityID, "facility-id", 0, "only list edge nodes at this facility")

	controlGetProjectCmd.Flags().BoolVar(&_controlCmdOpts.enrolledOnly, "enrolled-only", false, "only list facilities enrolled in the project")

	controlTransitionCmd.Flags().StringVar(&_controlCmdOpts.event, "event", "", "transition event to fire, eg. approve")
	controlTransitionCmd.Flags().StringVar(&_controlCmdOpts.message, "message", "", "message recorded in the control event log")
	errPanic(controlTransitionCmd.MarkFlagRequired("event"))

	controlCreateFacilityCmd.Flags().StringVar(&_controlCmdOpts.name, "name", "", "facility name")
	controlCreateFacilityCmd.Flags().IntVar(&_controlCmdOpts.id, "id", 0, "facility ID")
	controlCreateFacilityCmd.Flags().StringVar(&_controlCmdOpts.organizationID, "organization-id", "", "owning organization ID")
	for _, f := range []string{"name", "id", "organization-id"} {
		errPanic(controlCreateFacilityCmd.MarkFlagRequired(f))
	}

	controlGetCmd.AddCommand(controlGetOrganizationsCmd, controlGetFacilitiesCmd, controlGetFacilityCmd,
		controlGetEventsCmd, controlGetEventCmd, controlGetEdgeNodesCmd, controlGetEdgeNodeCmd,
		controlGetEdgeNodeEventsCmd, controlGetDefinitionsCmd, controlGetControllablesCmd,
		controlGetProjectsCmd, controlGetProjectCmd)
	controlCreateCmd.AddCommand(controlCreateFacilityCmd)
	controlCmd.AddCommand(controlGetCmd, controlCreateCmd, controlTransitionCmd)

	rootCmd.AddCommand(controlCmd)
}

func withControl(f func(ctx context.Context, control *controlapi.Service, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		control, err := newControlService()
		if err != nil {
			return err
		}

		return f(cmd.Context(), control, args)
	}
}

func intArg(name string, arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, errors.Errorf("%s must be an integer, got [%s]", name, arg)
	}
	return n, nil
}

// printDefinition pretty prints the definition document, which the API
// returns either as JSON or as a string holding JSON
func printDefinition(def *models.StateDefinition) error {
	doc := []byte(def.Definition)

	var s string
	if err := json.Unmarshal(doc, &s); err == nil {
		doc = []byte(s)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, doc, "", "    "); err != nil {
		return errors.Wrapf(err, "state definition %s is not valid JSON", def.Slug)
	}

	_, err := fmt.Fprintln(stdout, out.String())
	return err
}
