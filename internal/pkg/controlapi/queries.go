package controlapi

var (
	opEdgeControlEvents = mustParse(`
query EdgeControlEvents {
  edgeControlEvents {
    nodes {
      componentslug
      controlevent {
        id
        startTime
        endTime
        stateMachine {
          stateDefinition
          currentState
        }
      }
    }
  }
}`)

	opTransitionControlEvent = mustParse(`
mutation TransitionControlEvent($input: TransitionControlEventInput!) {
  transitionControlEvent(input: $input) {
    controlEvent {
      id
      stateMachine {
        currentState
      }
    }
  }
}`)

	opControlEvent = mustParse(`
query ControlEvent($id: UUID!) {
  controlEvent(id: $id) {
    id
    startTime
    endTime
    currentState
    controlEventLogs(orderBy: [EVENT_TIME_ASC]) {
      nodes {
        eventTime
        eventType
        label
        byUserId
        byEdgeNodeId
        previousState
        currentState
        data
      }
    }
  }
}`)

	opOrganizations = mustParse(`
query Organizations {
  organizations {
    nodes {
      id
      name
    }
  }
}`)

	opFacilities = mustParse(`
query Facilities {
  facilities {
    nodes {
      id
      name
      organizationId
      facilityProjects {
        nodes {
          enrollmentStatus
          project {
            id
            name
          }
        }
      }
      facilityUsers {
        nodes {
          userId
          role
        }
      }
    }
  }
}`)

	opFacility = mustParse(`
query Facility($id: Int!) {
  facility(id: $id) {
    id
    name
    organizationId
    controllableComponents {
      nodes {
        id
        slug
        label
        description
      }
    }
    eventProposals(condition: {isActive: true}) {
      nodes {
        id
        startTime
        endTime
        currentState
      }
    }
  }
}`)

	opCreateFacility = mustParse(`
mutation CreateFacility($input: CreateFacilityInput!) {
  createFacility(input: $input) {
    facility {
      id
      name
      organizationId
    }
  }
}`)

	opEdgeNodes = mustParse(`
query EdgeNodes($condition: EdgeNodeCondition) {
  edgeNodes(condition: $condition) {
    nodes {
      clientId
      facilityId
      organizationId
      lastFetchTime
    }
  }
}`)

	opEdgeNode = mustParse(`
query EdgeNode($clientId: String!) {
  edgeNode(clientId: $clientId) {
    clientId
    facilityId
    organizationId
    lastFetchTime
    facility {
      id
      name
    }
    organization {
      id
      name
    }
    controllableComponentsByControlledByEdgeNodeClientId {
      nodes {
        slug
        label
      }
    }
  }
}`)

	opStateDefinitions = mustParse(`
query StateDefinitions {
  stateDefinitions {
    nodes {
      slug
      label
      description
      definition
    }
  }
}`)

	opStateDefinition = mustParse(`
query StateDefinition($slug: String!) {
  stateDefinition(slug: $slug) {
    slug
    label
    description
    definition
  }
}`)

	opControllableComponents = mustParse(`
query ControllableComponents($condition: ControllableComponentCondition) {
  controllableComponents(condition: $condition) {
    nodes {
      id
      slug
      label
      description
      isSchedulable
    }
  }
}`)

	opProjects = mustParse(`
query Projects {
  projects {
    nodes {
      id
      name
      description
    }
  }
}`)

	opFacilityProjects = mustParse(`
query FacilityProjects($id: Int!) {
  facility(id: $id) {
    id
    facilityProjects {
      nodes {
        enrollmentStatus
        project {
          id
          name
          description
        }
      }
    }
  }
}`)

	opProject = mustParse(`
query Project($id: UUID!, $enrollment: FacilityProjectCondition) {
  project(id: $id) {
    id
    name
    description
    projectSuccessMetrics {
      nodes {
        id
        name
        units
        description
      }
    }
    facilityProjects(condition: $enrollment) {
      nodes {
        enrollmentStatus
        facility {
          id
          name
        }
      }
    }
  }
}`)
)
