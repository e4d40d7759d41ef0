// Package membership tracks which users belong to which channels, plus the
// join requests for approval-gated channels. The unique constraints on
// channel_members and join_requests are the source of truth; prior existence
// checks only shape the reported outcome.
package membership

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"chathub/types"
)

type JoinOutcome int

const (
	Joined JoinOutcome = iota
	AlreadyMember
)

type RequestOutcome int

const (
	Requested RequestOutcome = iota
	RequestAlreadyPending
	RequestAlreadyExists
	RequesterIsMember
)

type ReviewOutcome int

const (
	Reviewed ReviewOutcome = iota
	AlreadyProcessed
)

// LeaveResult reports what a Leave or Kick removed.
type LeaveResult struct {
	RemovedMember   bool
	RemovedRequests int
}

func (r LeaveResult) RemovedAnything() bool {
	return r.RemovedMember || r.RemovedRequests > 0
}

type Registry struct {
	DB *sql.DB
}

// Join inserts the membership if absent. A concurrent duplicate resolves via
// the primary key, not the insert-or-ignore race.
func (r *Registry) Join(userID, channelID int) (JoinOutcome, error) {
	res, err := r.DB.Exec(
		`INSERT OR IGNORE INTO channel_members (user_id, channel_id) VALUES (?, ?)`,
		userID, channelID,
	)
	if err != nil {
		return AlreadyMember, fmt.Errorf("membership join: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return AlreadyMember, fmt.Errorf("membership join: %w", err)
	}
	if affected == 0 {
		return AlreadyMember, nil
	}
	return Joined, nil
}

func (r *Registry) IsMember(userID, channelID int) (bool, error) {
	var one int
	err := r.DB.QueryRow(
		`SELECT 1 FROM channel_members WHERE user_id = ? AND channel_id = ?`,
		userID, channelID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("membership check: %w", err)
	}
	return true, nil
}

// Leave removes the membership and every join request for the pair, pending
// or resolved, so the user can re-request cleanly later. Both deletes commit
// together or not at all.
func (r *Registry) Leave(userID, channelID int) (LeaveResult, error) {
	var result LeaveResult
	tx, err := r.DB.Begin()
	if err != nil {
		return result, fmt.Errorf("membership leave: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`DELETE FROM channel_members WHERE user_id = ? AND channel_id = ?`,
		userID, channelID,
	)
	if err != nil {
		return result, fmt.Errorf("membership leave: %w", err)
	}
	members, _ := res.RowsAffected()
	result.RemovedMember = members > 0

	res, err = tx.Exec(
		`DELETE FROM join_requests WHERE user_id = ? AND channel_id = ?`,
		userID, channelID,
	)
	if err != nil {
		return result, fmt.Errorf("membership leave requests: %w", err)
	}
	requests, _ := res.RowsAffected()
	result.RemovedRequests = int(requests)

	if err := tx.Commit(); err != nil {
		return LeaveResult{}, fmt.Errorf("membership leave commit: %w", err)
	}
	return result, nil
}

// Kick has the same removal semantics as Leave. Authorization (moderator or
// admin, never self, never the bootstrap admin) is enforced by the caller.
func (r *Registry) Kick(userID, channelID int) (LeaveResult, error) {
	return r.Leave(userID, channelID)
}

// RequestJoin files a pending join request. An existing membership or pending
// request short-circuits; a resolved request still on file (the pair was not
// left or kicked since) surfaces as RequestAlreadyExists.
func (r *Registry) RequestJoin(userID, channelID int) (RequestOutcome, error) {
	member, err := r.IsMember(userID, channelID)
	if err != nil {
		return RequestAlreadyExists, err
	}
	if member {
		return RequesterIsMember, nil
	}

	pending, err := r.PendingRequest(userID, channelID)
	if err != nil {
		return RequestAlreadyExists, err
	}
	if pending != nil {
		return RequestAlreadyPending, nil
	}

	_, err = r.DB.Exec(
		`INSERT INTO join_requests (user_id, channel_id, status, requested_at) VALUES (?, ?, ?, ?)`,
		userID, channelID, types.RequestPending, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return RequestAlreadyExists, nil
		}
		return RequestAlreadyExists, fmt.Errorf("join request insert: %w", err)
	}
	return Requested, nil
}

func (r *Registry) PendingRequest(userID, channelID int) (*types.JoinRequest, error) {
	return r.scanRequest(r.DB.QueryRow(
		`SELECT id, user_id, channel_id, status, requested_at, reviewed_by, reviewed_at
		 FROM join_requests WHERE user_id = ? AND channel_id = ? AND status = ?`,
		userID, channelID, types.RequestPending,
	))
}

func (r *Registry) RequestByID(id int) (*types.JoinRequest, error) {
	return r.scanRequest(r.DB.QueryRow(
		`SELECT id, user_id, channel_id, status, requested_at, reviewed_by, reviewed_at
		 FROM join_requests WHERE id = ?`, id,
	))
}

// PendingRequests lists every pending request, oldest first, for review.
func (r *Registry) PendingRequests() ([]types.JoinRequest, error) {
	rows, err := r.DB.Query(
		`SELECT id, user_id, channel_id, status, requested_at, reviewed_by, reviewed_at
		 FROM join_requests WHERE status = ? ORDER BY requested_at ASC, id ASC`,
		types.RequestPending,
	)
	if err != nil {
		return nil, fmt.Errorf("pending requests: %w", err)
	}
	defer rows.Close()

	var requests []types.JoinRequest
	for rows.Next() {
		request, err := scanRequestRow(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

// Approve marks a pending request approved, records the reviewer, and joins
// the user in the same transaction. The join is idempotent in case the user
// became a member through another path.
func (r *Registry) Approve(requestID, reviewerID int) (ReviewOutcome, *types.JoinRequest, error) {
	return r.review(requestID, reviewerID, types.RequestApproved)
}

// Reject marks a pending request rejected with no membership change.
func (r *Registry) Reject(requestID, reviewerID int) (ReviewOutcome, *types.JoinRequest, error) {
	return r.review(requestID, reviewerID, types.RequestRejected)
}

func (r *Registry) review(requestID, reviewerID int, status string) (ReviewOutcome, *types.JoinRequest, error) {
	request, err := r.RequestByID(requestID)
	if err != nil {
		return AlreadyProcessed, nil, err
	}
	if request == nil {
		return AlreadyProcessed, nil, sql.ErrNoRows
	}
	if request.Status != types.RequestPending {
		return AlreadyProcessed, request, nil
	}

	tx, err := r.DB.Begin()
	if err != nil {
		return AlreadyProcessed, nil, fmt.Errorf("request review: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := tx.Exec(
		`UPDATE join_requests SET status = ?, reviewed_by = ?, reviewed_at = ? WHERE id = ? AND status = ?`,
		status, reviewerID, now, requestID, types.RequestPending,
	)
	if err != nil {
		return AlreadyProcessed, nil, fmt.Errorf("request review: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		// Lost a race with another reviewer.
		return AlreadyProcessed, request, nil
	}

	if status == types.RequestApproved {
		_, err = tx.Exec(
			`INSERT OR IGNORE INTO channel_members (user_id, channel_id) VALUES (?, ?)`,
			request.UserID, request.ChannelID,
		)
		if err != nil {
			return AlreadyProcessed, nil, fmt.Errorf("approve join: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return AlreadyProcessed, nil, fmt.Errorf("request review commit: %w", err)
	}

	request.Status = status
	request.ReviewedBy = reviewerID
	request.ReviewedAt = now
	return Reviewed, request, nil
}

func (r *Registry) scanRequest(row *sql.Row) (*types.JoinRequest, error) {
	var request types.JoinRequest
	var reviewedBy sql.NullInt64
	var reviewedAt sql.NullString
	err := row.Scan(&request.ID, &request.UserID, &request.ChannelID, &request.Status,
		&request.RequestedAt, &reviewedBy, &reviewedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("join request scan: %w", err)
	}
	if reviewedBy.Valid {
		request.ReviewedBy = int(reviewedBy.Int64)
	}
	if reviewedAt.Valid {
		request.ReviewedAt = reviewedAt.String
	}
	return &request, nil
}

func scanRequestRow(rows *sql.Rows) (types.JoinRequest, error) {
	var request types.JoinRequest
	var reviewedBy sql.NullInt64
	var reviewedAt sql.NullString
	err := rows.Scan(&request.ID, &request.UserID, &request.ChannelID, &request.Status,
		&request.RequestedAt, &reviewedBy, &reviewedAt)
	if err != nil {
		return request, fmt.Errorf("join request scan: %w", err)
	}
	if reviewedBy.Valid {
		request.ReviewedBy = int(reviewedBy.Int64)
	}
	if reviewedAt.Valid {
		request.ReviewedAt = reviewedAt.String
	}
	return request, nil
}
