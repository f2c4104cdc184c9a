package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/agency-engine/internal/audit"
	"github.com/danielpatrickdp/agency-engine/internal/lifecycle"
	"github.com/danielpatrickdp/agency-engine/internal/relstate"
	"github.com/danielpatrickdp/agency-engine/internal/tier"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to agency.db")
	last := flag.Int("last", 20, "show N most recent action requests")
	action := flag.String("action", "", "show single action detail with its audit trail")
	showState := flag.Bool("state", false, "list relational state versions instead of actions")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/agency.db [--last N] [--action id] [--state] [--json]")
		os.Exit(2)
	}

	store, err := relstate.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *action != "":
		err = runActionDetail(store, *action, *jsonOut)
	case *showState:
		err = runStateList(store, *last, *jsonOut)
	default:
		err = runActionList(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region action-list

type actionRow struct {
	ID         string `json:"id"`
	ActionType string `json:"action_type"`
	Resource   string `json:"resource"`
	Status     string `json:"status"`
	DenyCode   string `json:"deny_code,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Requested  string `json:"requested_at"`
}

func runActionList(store *relstate.Store, last int, jsonOut bool) error {
	reqStore, err := lifecycle.NewStore(store.DB())
	if err != nil {
		return err
	}
	requests, err := reqStore.ListRange(time.Time{}, time.Now().UTC().Add(time.Hour))
	if err != nil {
		return err
	}
	if len(requests) > last {
		requests = requests[len(requests)-last:]
	}
	if len(requests) == 0 {
		fmt.Fprintln(os.Stderr, "no action requests found")
		return nil
	}

	rows := make([]actionRow, len(requests))
	for i, r := range requests {
		rows[i] = actionRow{
			ID:         r.ID,
			ActionType: r.ActionType,
			Resource:   r.Resource,
			Status:     string(r.Status),
			DenyCode:   string(r.DenyCode),
			Reason:     r.StatusReason,
			Requested:  r.RequestedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-10s  %-16s  %-28s  %-12s  %-22s  %s\n",
		"Action", "Type", "Resource", "Status", "Code", "Time")
	for _, r := range rows {
		fmt.Printf("%-10s  %-16s  %-28s  %-12s  %-22s  %s\n",
			shortID(r.ID), r.ActionType, r.Resource, r.Status, dash(r.DenyCode), r.Requested)
	}
	return nil
}

// #endregion action-list

// #region action-detail

type actionDetail struct {
	Request actionRow  `json:"request"`
	Trail   []auditRow `json:"trail"`
}

type auditRow struct {
	Transition string `json:"transition"`
	Cause      string `json:"cause"`
	Detail     string `json:"detail,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func runActionDetail(store *relstate.Store, actionID string, jsonOut bool) error {
	reqStore, err := lifecycle.NewStore(store.DB())
	if err != nil {
		return err
	}
	auditLog, err := audit.NewLog(store.DB())
	if err != nil {
		return err
	}

	req, err := reqStore.Get(actionID)
	if err != nil {
		return err
	}
	entries, err := auditLog.ListByAction(actionID)
	if err != nil {
		return err
	}

	out := actionDetail{
		Request: actionRow{
			ID:         req.ID,
			ActionType: req.ActionType,
			Resource:   req.Resource,
			Status:     string(req.Status),
			DenyCode:   string(req.DenyCode),
			Reason:     req.StatusReason,
			Requested:  req.RequestedAt.Format("2006-01-02T15:04:05Z"),
		},
	}
	for _, e := range entries {
		out.Trail = append(out.Trail, auditRow{
			Transition: e.Transition,
			Cause:      e.Cause,
			Detail:     e.Detail,
			CreatedAt:  e.CreatedAt.Format("2006-01-02T15:04:05.000Z"),
		})
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Action:    %s\n", req.ID)
	fmt.Printf("Type:      %s\n", req.ActionType)
	fmt.Printf("Resource:  %s\n", req.Resource)
	fmt.Printf("Status:    %s\n", req.Status)
	if req.DenyCode != "" {
		fmt.Printf("Code:      %s\n", req.DenyCode)
	}
	if req.StatusReason != "" {
		fmt.Printf("Reason:    %s\n", req.StatusReason)
	}
	fmt.Printf("Requested: %s\n", out.Request.Requested)

	fmt.Printf("\nAudit trail:\n")
	for _, e := range out.Trail {
		fmt.Printf("  %s  %-28s %-22s %s\n", e.CreatedAt, e.Transition, e.Cause, e.Detail)
	}
	return nil
}

// #endregion action-detail

// #region state-list

type stateRow struct {
	VersionID string  `json:"version_id"`
	Trust     float64 `json:"trust"`
	Warmth    float64 `json:"warmth"`
	Arousal   float64 `json:"arousal"`
	Valence   float64 `json:"valence"`
	Tier      string  `json:"tier"`
	Posture   string  `json:"posture"`
	Reason    string  `json:"reason"`
	CreatedAt string  `json:"created_at"`
}

func runStateList(store *relstate.Store, last int, jsonOut bool) error {
	versions, err := store.ListVersions(last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no state versions found")
		return nil
	}

	ladder := tier.DefaultLadder()
	rows := make([]stateRow, len(versions))
	for i, v := range versions {
		// Store returns newest first; reverse for chronological output.
		rows[len(versions)-1-i] = stateRow{
			VersionID: v.VersionID,
			Trust:     v.Trust,
			Warmth:    v.Warmth,
			Arousal:   v.Arousal,
			Valence:   v.Valence,
			Tier:      ladder.Resolve(v.Trust).String(),
			Posture:   string(v.Posture),
			Reason:    v.Reason,
			CreatedAt: v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-10s  %6s  %6s  %7s  %7s  %-4s  %-10s  %s\n",
		"Version", "Trust", "Warmth", "Arousal", "Valence", "Tier", "Posture", "Reason")
	for _, r := range rows {
		fmt.Printf("%-10s  %6.3f  %6.3f  %7.3f  %7.3f  %-4s  %-10s  %s\n",
			shortID(r.VersionID), r.Trust, r.Warmth, r.Arousal, r.Valence, r.Tier, r.Posture, r.Reason)
	}
	return nil
}

// #endregion state-list

// #region output

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func dash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// #endregion output
