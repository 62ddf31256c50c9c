package controlapi

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/pkg/errors"

	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
	"github.com/jake-scott/contxt-cli/internal/pkg/models"
)

// EnrollmentStatusEnrolled marks a facility taking part in a project
const EnrollmentStatusEnrolled = "ENROLLED"

// TransitionInput asks the remote state machine to fire an event
type TransitionInput struct {
	ControlEventID  string  `json:"controlEventId"`
	TransitionEvent string  `json:"transitionEvent"`
	Message         *string `json:"message,omitempty"`
}

// FacilityInput describes a facility to create
type FacilityInput struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	OrganizationID string `json:"organizationId"`
}

// Service is the Control API
type Service struct {
	client *Client
}

func NewService(client *Client) *Service {
	return &Service{client: client}
}

// GetEdgeControlEvents returns the control events active for the calling
// edge node.  Events missing the fields the simulator needs are logged and
// left out.
func (s *Service) GetEdgeControlEvents(ctx context.Context) ([]models.EdgeControlEvent, error) {
	var data struct {
		EdgeControlEvents *models.Nodes[models.EdgeControlEvent] `json:"edgeControlEvents"`
	}
	if err := s.client.Run(ctx, opEdgeControlEvents, nil, &data); err != nil {
		return nil, err
	}

	events := make([]models.EdgeControlEvent, 0, len(data.EdgeControlEvents.Items()))
	for _, ev := range data.EdgeControlEvents.Items() {
		if err := ev.Validate(strfmt.Default); err != nil {
			logging.Logger(ctx).WithError(err).Warnf("ignoring malformed edge control event for component [%s]", ev.ComponentSlug)
			continue
		}
		events = append(events, ev)
	}

	return events, nil
}

// TransitionEvent fires transitionEvent on the control event
func (s *Service) TransitionEvent(ctx context.Context, controlEventID string, transitionEvent string) (*models.TransitionResult, error) {
	return s.Transition(ctx, TransitionInput{
		ControlEventID:  controlEventID,
		TransitionEvent: transitionEvent,
	})
}

// Transition fires a transition with an optional message
func (s *Service) Transition(ctx context.Context, input TransitionInput) (*models.TransitionResult, error) {
	var data struct {
		TransitionControlEvent *models.TransitionResult `json:"transitionControlEvent"`
	}

	vars := map[string]interface{}{"input": input}
	if err := s.client.Run(ctx, opTransitionControlEvent, vars, &data); err != nil {
		return nil, errors.Wrapf(err, "transitioning control event %s with %s", input.ControlEventID, input.TransitionEvent)
	}

	if data.TransitionControlEvent == nil {
		return nil, fmt.Errorf("no result transitioning control event %s", input.ControlEventID)
	}
	return data.TransitionControlEvent, nil
}

// GetControlEvent returns a control event with its audit log
func (s *Service) GetControlEvent(ctx context.Context, id string) (*models.ControlEvent, error) {
	var data struct {
		ControlEvent *models.ControlEvent `json:"controlEvent"`
	}
	if err := s.client.Run(ctx, opControlEvent, map[string]interface{}{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.ControlEvent == nil {
		return nil, fmt.Errorf("control event %s not found", id)
	}
	return data.ControlEvent, nil
}

func (s *Service) GetOrganizations(ctx context.Context) ([]models.Organization, error) {
	var data struct {
		Organizations *models.Nodes[models.Organization] `json:"organizations"`
	}
	if err := s.client.Run(ctx, opOrganizations, nil, &data); err != nil {
		return nil, err
	}
	return data.Organizations.Items(), nil
}

func (s *Service) GetFacilities(ctx context.Context) ([]models.Facility, error) {
	var data struct {
		Facilities *models.Nodes[models.Facility] `json:"facilities"`
	}
	if err := s.client.Run(ctx, opFacilities, nil, &data); err != nil {
		return nil, err
	}
	return data.Facilities.Items(), nil
}

// GetFacility returns a facility with its components and active proposals
func (s *Service) GetFacility(ctx context.Context, id int) (*models.Facility, error) {
	var data struct {
		Facility *models.Facility `json:"facility"`
	}
	if err := s.client.Run(ctx, opFacility, map[string]interface{}{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.Facility == nil {
		return nil, fmt.Errorf("facility %d not found", id)
	}
	return data.Facility, nil
}

func (s *Service) CreateFacility(ctx context.Context, input FacilityInput) (*models.Facility, error) {
	var data struct {
		CreateFacility struct {
			Facility *models.Facility `json:"facility"`
		} `json:"createFacility"`
	}

	vars := map[string]interface{}{
		"input": map[string]interface{}{"facility": input},
	}
	if err := s.client.Run(ctx, opCreateFacility, vars, &data); err != nil {
		return nil, errors.Wrapf(err, "creating facility %s", input.Name)
	}
	return data.CreateFacility.Facility, nil
}

// GetEdgeNodes lists edge nodes, at one facility if facilityID is non-zero
func (s *Service) GetEdgeNodes(ctx context.Context, facilityID int) ([]models.EdgeNode, error) {
	var vars map[string]interface{}
	if facilityID != 0 {
		vars = map[string]interface{}{
			"condition": map[string]interface{}{"facilityId": facilityID},
		}
	}

	var data struct {
		EdgeNodes *models.Nodes[models.EdgeNode] `json:"edgeNodes"`
	}
	if err := s.client.Run(ctx, opEdgeNodes, vars, &data); err != nil {
		return nil, err
	}
	return data.EdgeNodes.Items(), nil
}

func (s *Service) GetEdgeNode(ctx context.Context, clientID string) (*models.EdgeNode, error) {
	var data struct {
		EdgeNode *models.EdgeNode `json:"edgeNode"`
	}
	if err := s.client.Run(ctx, opEdgeNode, map[string]interface{}{"clientId": clientID}, &data); err != nil {
		return nil, err
	}
	if data.EdgeNode == nil {
		return nil, fmt.Errorf("edge node %s not found", clientID)
	}
	return data.EdgeNode, nil
}

func (s *Service) GetStateDefinitions(ctx context.Context) ([]models.StateDefinition, error) {
	var data struct {
		StateDefinitions *models.Nodes[models.StateDefinition] `json:"stateDefinitions"`
	}
	if err := s.client.Run(ctx, opStateDefinitions, nil, &data); err != nil {
		return nil, err
	}
	return data.StateDefinitions.Items(), nil
}

func (s *Service) GetStateDefinition(ctx context.Context, slug string) (*models.StateDefinition, error) {
	var data struct {
		StateDefinition *models.StateDefinition `json:"stateDefinition"`
	}
	if err := s.client.Run(ctx, opStateDefinition, map[string]interface{}{"slug": slug}, &data); err != nil {
		return nil, err
	}
	if data.StateDefinition == nil {
		return nil, fmt.Errorf("state definition %s not found", slug)
	}
	return data.StateDefinition, nil
}

// GetControllables lists the controllable components of a facility, only
// those with the given slug when it is non-empty
func (s *Service) GetControllables(ctx context.Context, facilityID int, slug string) ([]models.ControllableComponent, error) {
	condition := map[string]interface{}{"facilityId": facilityID}
	if slug != "" {
		condition["slug"] = slug
	}

	var data struct {
		Components *models.Nodes[models.ControllableComponent] `json:"controllableComponents"`
	}
	if err := s.client.Run(ctx, opControllableComponents, map[string]interface{}{"condition": condition}, &data); err != nil {
		return nil, err
	}
	return data.Components.Items(), nil
}

// GetProjects lists projects, only those a facility is enrolled in when
// facilityID is non-zero
func (s *Service) GetProjects(ctx context.Context, facilityID int) ([]models.Project, error) {
	if facilityID == 0 {
		var data struct {
			Projects *models.Nodes[models.Project] `json:"projects"`
		}
		if err := s.client.Run(ctx, opProjects, nil, &data); err != nil {
			return nil, err
		}
		return data.Projects.Items(), nil
	}

	var data struct {
		Facility *models.Facility `json:"facility"`
	}
	if err := s.client.Run(ctx, opFacilityProjects, map[string]interface{}{"id": facilityID}, &data); err != nil {
		return nil, err
	}
	if data.Facility == nil {
		return nil, fmt.Errorf("facility %d not found", facilityID)
	}

	var projects []models.Project
	for _, fp := range data.Facility.Projects.Items() {
		if fp.Project != nil {
			projects = append(projects, *fp.Project)
		}
	}
	return projects, nil
}

// GetProject returns a project with its success metrics and the facilities
// taking part in it; enrolledOnly drops facilities not yet enrolled
func (s *Service) GetProject(ctx context.Context, id string, enrolledOnly bool) (*models.Project, error) {
	vars := map[string]interface{}{"id": id}
	if enrolledOnly {
		vars["enrollment"] = map[string]interface{}{"enrollmentStatus": EnrollmentStatusEnrolled}
	}

	var data struct {
		Project *models.Project `json:"project"`
	}
	if err := s.client.Run(ctx, opProject, vars, &data); err != nil {
		return nil, err
	}
	if data.Project == nil {
		return nil, fmt.Errorf("project %s not found", id)
	}
	return data.Project, nil
}
