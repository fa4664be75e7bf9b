package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/marketflow/internal/domain"
	"github.com/neomorfeo/marketflow/internal/process"
)

// ProcessSummary identifies a registered process.
type ProcessSummary struct {
	Name    string `json:"name" doc:"Process name used when initiating transactions"`
	GraphID string `json:"graphId" doc:"Versioned graph identifier"`
}

type ListProcessesOutput struct {
	Body []ProcessSummary
}

// ProcessResponse describes a process graph and its transition classification.
type ProcessResponse struct {
	Name                           string            `json:"name"`
	Graph                          domain.Graph      `json:"graph"`
	Actors                         map[string]string `json:"actors" doc:"Role allowed to take each transition"`
	Privileged                     []string          `json:"privileged"`
	RelevantPast                   []string          `json:"relevantPast"`
	Completed                      []string          `json:"completed"`
	Refunded                       []string          `json:"refunded"`
	StatesNeedingProviderAttention []string          `json:"statesNeedingProviderAttention"`
	StatesNeedingCustomerAttention []string          `json:"statesNeedingCustomerAttention"`
}

type GetProcessInput struct {
	Name string `path:"name" doc:"Process name"`
}

type GetProcessOutput struct {
	Body ProcessResponse
}

func transitionNames(s domain.TransitionSet) []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, t := range sorted {
		out[i] = string(t)
	}
	return out
}

func stateNames(states []domain.State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

func toProcessResponse(p domain.Process) ProcessResponse {
	actors := make(map[string]string, len(p.Actors))
	for t, a := range p.Actors {
		actors[string(t)] = string(a)
	}
	return ProcessResponse{
		Name:                           p.Name,
		Graph:                          p.Graph,
		Actors:                         actors,
		Privileged:                     transitionNames(p.Privileged),
		RelevantPast:                   transitionNames(p.RelevantPast),
		Completed:                      transitionNames(p.Completed),
		Refunded:                       transitionNames(p.Refunded),
		StatesNeedingProviderAttention: stateNames(p.StatesNeedingProviderAttention),
		StatesNeedingCustomerAttention: stateNames(p.StatesNeedingCustomerAttention),
	}
}

func registerProcesses(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-processes",
		Method:      http.MethodGet,
		Path:        "/api/v1/processes",
		Summary:     "List registered processes",
		Tags:        []string{"Processes"},
	}, func(ctx context.Context, _ *struct{}) (*ListProcessesOutput, error) {
		names := process.Names()
		resp := make([]ProcessSummary, 0, len(names))
		for _, name := range names {
			p, err := process.Lookup(name)
			if err != nil {
				return nil, toHumaError(ctx, err)
			}
			resp = append(resp, ProcessSummary{Name: p.Name, GraphID: p.Graph.ID})
		}
		return &ListProcessesOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-process",
		Method:      http.MethodGet,
		Path:        "/api/v1/processes/{name}",
		Summary:     "Get a process graph",
		Tags:        []string{"Processes"},
	}, func(ctx context.Context, input *GetProcessInput) (*GetProcessOutput, error) {
		p, err := process.Lookup(input.Name)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &GetProcessOutput{Body: toProcessResponse(p)}, nil
	})
}
