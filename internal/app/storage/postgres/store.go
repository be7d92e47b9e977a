// Package postgres implements the storage interfaces on PostgreSQL via sqlx.
// All balance changes go through DebitUser/CreditUser, which are single
// conditional UPDATEs so a balance can never go negative even under
// concurrent requests.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pactpoint/backend/internal/app/domain/bet"
	"github.com/pactpoint/backend/internal/app/domain/challenge"
	"github.com/pactpoint/backend/internal/app/domain/notification"
	"github.com/pactpoint/backend/internal/app/domain/user"
	"github.com/pactpoint/backend/internal/app/storage"
	apperrors "github.com/pactpoint/backend/internal/errors"
)

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
	q  queries
}

var _ storage.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, q: queries{ext: db}}
}

// WithinTx runs fn inside a single database transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	dbTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Internal("begin transaction", err)
	}

	if err := fn(&txStore{q: queries{ext: dbTx}, tx: dbTx}); err != nil {
		_ = dbTx.Rollback()
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return apperrors.Internal("commit transaction", err)
	}
	return nil
}

// txStore is the transactional view handed to WithinTx callbacks.
type txStore struct {
	q  queries
	tx *sqlx.Tx
}

var _ storage.Tx = (*txStore)(nil)

func (t *txStore) LockBet(ctx context.Context, id string) (bet.Bet, error) {
	var row betRow
	err := sqlx.GetContext(ctx, t.tx, &row, `
		SELECT `+betColumns+`
		FROM bets
		WHERE id = $1
		FOR UPDATE
	`, id)
	if err != nil {
		return bet.Bet{}, mapNotFound(err, "bet", id)
	}
	return row.toDomain(), nil
}

// queries holds every query shared between the plain store and the
// transactional view.
type queries struct {
	ext sqlx.ExtContext
}

func mapNotFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(kind, id)
	}
	return apperrors.Internal("query "+kind, err)
}

// isUniqueViolation reports whether err is a violation of the named unique
// constraint; an empty name matches any unique violation.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// --- UserStore --------------------------------------------------------------

type userRow struct {
	ID             string    `db:"id"`
	Username       string    `db:"username"`
	Email          string    `db:"email"`
	HashedPassword string    `db:"hashed_password"`
	Points         int64     `db:"points"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

const userColumns = `id, username, email, hashed_password, points, created_at, updated_at`

func (r userRow) toDomain() user.User {
	return user.User(r)
}

func (q queries) createUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO users (id, username, email, hashed_password, points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Username, u.Email, u.HashedPassword, u.Points, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err, "users_username_key"):
			return user.User{}, apperrors.AlreadyExists("username", u.Username)
		case isUniqueViolation(err, "users_email_key"):
			return user.User{}, apperrors.AlreadyExists("email", u.Email)
		}
		return user.User{}, apperrors.Internal("create user", err)
	}
	return u, nil
}

func (q queries) getUserBy(ctx context.Context, column, value string) (user.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, q.ext, &row, `
		SELECT `+userColumns+`
		FROM users
		WHERE `+column+` = $1
	`, value)
	if err != nil {
		return user.User{}, mapNotFound(err, "user", value)
	}
	return row.toDomain(), nil
}

func (q queries) listUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at
	`)
	if err != nil {
		return nil, apperrors.Internal("list users", err)
	}
	out := make([]user.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (q queries) debitUser(ctx context.Context, id string, amount int64) error {
	if amount <= 0 {
		return apperrors.InvalidAmount(amount)
	}
	res, err := q.ext.ExecContext(ctx, `
		UPDATE users
		SET points = points - $2, updated_at = $3
		WHERE id = $1 AND points >= $2
	`, id, amount, time.Now().UTC())
	if err != nil {
		return apperrors.Internal("debit user", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		u, err := q.getUserBy(ctx, "id", id)
		if err != nil {
			return err
		}
		return apperrors.InsufficientFunds(u.Points, amount)
	}
	return nil
}

func (q queries) creditUser(ctx context.Context, id string, amount int64) error {
	if amount <= 0 {
		return apperrors.InvalidAmount(amount)
	}
	res, err := q.ext.ExecContext(ctx, `
		UPDATE users
		SET points = points + $2, updated_at = $3
		WHERE id = $1
	`, id, amount, time.Now().UTC())
	if err != nil {
		return apperrors.Internal("credit user", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	return s.q.createUser(ctx, u)
}

func (t *txStore) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	return t.q.createUser(ctx, u)
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.q.getUserBy(ctx, "id", id)
}

func (t *txStore) GetUser(ctx context.Context, id string) (user.User, error) {
	return t.q.getUserBy(ctx, "id", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return s.q.getUserBy(ctx, "username", username)
}

func (t *txStore) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return t.q.getUserBy(ctx, "username", username)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.q.getUserBy(ctx, "email", email)
}

func (t *txStore) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return t.q.getUserBy(ctx, "email", email)
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	return s.q.listUsers(ctx)
}

func (t *txStore) ListUsers(ctx context.Context) ([]user.User, error) {
	return t.q.listUsers(ctx)
}

func (s *Store) DebitUser(ctx context.Context, id string, amount int64) error {
	return s.q.debitUser(ctx, id, amount)
}

func (t *txStore) DebitUser(ctx context.Context, id string, amount int64) error {
	return t.q.debitUser(ctx, id, amount)
}

func (s *Store) CreditUser(ctx context.Context, id string, amount int64) error {
	return s.q.creditUser(ctx, id, amount)
}

func (t *txStore) CreditUser(ctx context.Context, id string, amount int64) error {
	return t.q.creditUser(ctx, id, amount)
}

// --- BetStore ---------------------------------------------------------------

type betRow struct {
	ID               string     `db:"id"`
	CreatorID        string     `db:"creator_id"`
	Title            string     `db:"title"`
	Criteria         string     `db:"criteria"`
	Amount           int64      `db:"amount"`
	Deadline         time.Time  `db:"deadline"`
	ProofDeadline    *time.Time `db:"proof_deadline"`
	Status           string     `db:"status"`
	Stars            int64      `db:"stars"`
	ProofComment     string     `db:"proof_comment"`
	ProofMediaURL    string     `db:"proof_media_url"`
	ProofSubmittedAt *time.Time `db:"proof_submitted_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

const betColumns = `id, creator_id, title, criteria, amount, deadline, proof_deadline,
		status, stars, proof_comment, proof_media_url, proof_submitted_at, created_at, updated_at`

func (r betRow) toDomain() bet.Bet {
	return bet.Bet{
		ID:               r.ID,
		CreatorID:        r.CreatorID,
		Title:            r.Title,
		Criteria:         r.Criteria,
		Amount:           r.Amount,
		Deadline:         r.Deadline,
		ProofDeadline:    r.ProofDeadline,
		Status:           bet.Status(r.Status),
		Stars:            r.Stars,
		ProofComment:     r.ProofComment,
		ProofMediaURL:    r.ProofMediaURL,
		ProofSubmittedAt: r.ProofSubmittedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (q queries) createBet(ctx context.Context, b bet.Bet) (bet.Bet, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO bets (id, creator_id, title, criteria, amount, deadline, proof_deadline,
			status, stars, proof_comment, proof_media_url, proof_submitted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, b.ID, b.CreatorID, b.Title, b.Criteria, b.Amount, b.Deadline, b.ProofDeadline,
		string(b.Status), b.Stars, b.ProofComment, b.ProofMediaURL, b.ProofSubmittedAt,
		b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return bet.Bet{}, apperrors.Internal("create bet", err)
	}
	return b, nil
}

func (q queries) updateBet(ctx context.Context, b bet.Bet) (bet.Bet, error) {
	b.UpdatedAt = time.Now().UTC()
	res, err := q.ext.ExecContext(ctx, `
		UPDATE bets
		SET title = $2, criteria = $3, amount = $4, deadline = $5, proof_deadline = $6,
			status = $7, stars = $8, proof_comment = $9, proof_media_url = $10,
			proof_submitted_at = $11, updated_at = $12
		WHERE id = $1
	`, b.ID, b.Title, b.Criteria, b.Amount, b.Deadline, b.ProofDeadline,
		string(b.Status), b.Stars, b.ProofComment, b.ProofMediaURL,
		b.ProofSubmittedAt, b.UpdatedAt)
	if err != nil {
		return bet.Bet{}, apperrors.Internal("update bet", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return bet.Bet{}, apperrors.NotFound("bet", b.ID)
	}
	return b, nil
}

func (q queries) getBet(ctx context.Context, id string) (bet.Bet, error) {
	var row betRow
	err := sqlx.GetContext(ctx, q.ext, &row, `
		SELECT `+betColumns+`
		FROM bets
		WHERE id = $1
	`, id)
	if err != nil {
		return bet.Bet{}, mapNotFound(err, "bet", id)
	}
	return row.toDomain(), nil
}

func betList(rows []betRow) []bet.Bet {
	out := make([]bet.Bet, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

func (q queries) listBetsByCreator(ctx context.Context, creatorID string, offset, limit int) ([]bet.Bet, int64, error) {
	var total int64
	if err := sqlx.GetContext(ctx, q.ext, &total, `
		SELECT COUNT(*) FROM bets WHERE creator_id = $1
	`, creatorID); err != nil {
		return nil, 0, apperrors.Internal("count bets", err)
	}

	var rows []betRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT `+betColumns+`
		FROM bets
		WHERE creator_id = $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`, creatorID, offset, limit)
	if err != nil {
		return nil, 0, apperrors.Internal("list bets", err)
	}
	return betList(rows), total, nil
}

func (q queries) listBetsPublic(ctx context.Context, offset, limit int) ([]bet.Bet, int64, error) {
	var total int64
	if err := sqlx.GetContext(ctx, q.ext, &total, `SELECT COUNT(*) FROM bets`); err != nil {
		return nil, 0, apperrors.Internal("count bets", err)
	}

	var rows []betRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT `+betColumns+`
		FROM bets
		ORDER BY stars DESC, created_at DESC
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, apperrors.Internal("list bets", err)
	}
	return betList(rows), total, nil
}

func (q queries) listDueBets(ctx context.Context, now time.Time, limit int) ([]bet.Bet, error) {
	var rows []betRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT `+betColumns+`
		FROM bets
		WHERE (status = 'active' AND deadline <= $1)
		   OR (status = 'awaiting_proof' AND proof_deadline IS NOT NULL AND proof_deadline <= $1)
		ORDER BY deadline
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, apperrors.Internal("list due bets", err)
	}
	return betList(rows), nil
}

func (s *Store) CreateBet(ctx context.Context, b bet.Bet) (bet.Bet, error) {
	return s.q.createBet(ctx, b)
}

func (t *txStore) CreateBet(ctx context.Context, b bet.Bet) (bet.Bet, error) {
	return t.q.createBet(ctx, b)
}

func (s *Store) UpdateBet(ctx context.Context, b bet.Bet) (bet.Bet, error) {
	return s.q.updateBet(ctx, b)
}

func (t *txStore) UpdateBet(ctx context.Context, b bet.Bet) (bet.Bet, error) {
	return t.q.updateBet(ctx, b)
}

func (s *Store) GetBet(ctx context.Context, id string) (bet.Bet, error) {
	return s.q.getBet(ctx, id)
}

func (t *txStore) GetBet(ctx context.Context, id string) (bet.Bet, error) {
	return t.q.getBet(ctx, id)
}

func (s *Store) ListBetsByCreator(ctx context.Context, creatorID string, offset, limit int) ([]bet.Bet, int64, error) {
	return s.q.listBetsByCreator(ctx, creatorID, offset, limit)
}

func (t *txStore) ListBetsByCreator(ctx context.Context, creatorID string, offset, limit int) ([]bet.Bet, int64, error) {
	return t.q.listBetsByCreator(ctx, creatorID, offset, limit)
}

func (s *Store) ListBetsPublic(ctx context.Context, offset, limit int) ([]bet.Bet, int64, error) {
	return s.q.listBetsPublic(ctx, offset, limit)
}

func (t *txStore) ListBetsPublic(ctx context.Context, offset, limit int) ([]bet.Bet, int64, error) {
	return t.q.listBetsPublic(ctx, offset, limit)
}

func (s *Store) ListDueBets(ctx context.Context, now time.Time, limit int) ([]bet.Bet, error) {
	return s.q.listDueBets(ctx, now, limit)
}

func (t *txStore) ListDueBets(ctx context.Context, now time.Time, limit int) ([]bet.Bet, error) {
	return t.q.listDueBets(ctx, now, limit)
}

// --- ChallengeStore ---------------------------------------------------------

type challengeRow struct {
	ID           string    `db:"id"`
	BetID        string    `db:"bet_id"`
	ChallengerID string    `db:"challenger_id"`
	Amount       int64     `db:"amount"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
}

const challengeColumns = `id, bet_id, challenger_id, amount, status, created_at`

func (r challengeRow) toDomain() challenge.Challenge {
	return challenge.Challenge{
		ID:           r.ID,
		BetID:        r.BetID,
		ChallengerID: r.ChallengerID,
		Amount:       r.Amount,
		Status:       challenge.Status(r.Status),
		CreatedAt:    r.CreatedAt,
	}
}

func (q queries) createChallenge(ctx context.Context, c challenge.Challenge) (challenge.Challenge, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO challenges (id, bet_id, challenger_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.BetID, c.ChallengerID, c.Amount, string(c.Status), c.CreatedAt)
	if err != nil {
		return challenge.Challenge{}, apperrors.Internal("create challenge", err)
	}
	return c, nil
}

func (q queries) updateChallenge(ctx context.Context, c challenge.Challenge) (challenge.Challenge, error) {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE challenges
		SET amount = $2, status = $3
		WHERE id = $1
	`, c.ID, c.Amount, string(c.Status))
	if err != nil {
		return challenge.Challenge{}, apperrors.Internal("update challenge", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return challenge.Challenge{}, apperrors.NotFound("challenge", c.ID)
	}
	return c, nil
}

func (q queries) getChallenge(ctx context.Context, id string) (challenge.Challenge, error) {
	var row challengeRow
	err := sqlx.GetContext(ctx, q.ext, &row, `
		SELECT `+challengeColumns+`
		FROM challenges
		WHERE id = $1
	`, id)
	if err != nil {
		return challenge.Challenge{}, mapNotFound(err, "challenge", id)
	}
	return row.toDomain(), nil
}

func (q queries) listChallengesForBet(ctx context.Context, betID string) ([]challenge.Challenge, error) {
	var rows []challengeRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT `+challengeColumns+`
		FROM challenges
		WHERE bet_id = $1
		ORDER BY created_at
	`, betID)
	if err != nil {
		return nil, apperrors.Internal("list challenges", err)
	}
	out := make([]challenge.Challenge, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) CreateChallenge(ctx context.Context, c challenge.Challenge) (challenge.Challenge, error) {
	return s.q.createChallenge(ctx, c)
}

func (t *txStore) CreateChallenge(ctx context.Context, c challenge.Challenge) (challenge.Challenge, error) {
	return t.q.createChallenge(ctx, c)
}

func (s *Store) UpdateChallenge(ctx context.Context, c challenge.Challenge) (challenge.Challenge, error) {
	return s.q.updateChallenge(ctx, c)
}

func (t *txStore) UpdateChallenge(ctx context.Context, c challenge.Challenge) (challenge.Challenge, error) {
	return t.q.updateChallenge(ctx, c)
}

func (s *Store) GetChallenge(ctx context.Context, id string) (challenge.Challenge, error) {
	return s.q.getChallenge(ctx, id)
}

func (t *txStore) GetChallenge(ctx context.Context, id string) (challenge.Challenge, error) {
	return t.q.getChallenge(ctx, id)
}

func (s *Store) ListChallengesForBet(ctx context.Context, betID string) ([]challenge.Challenge, error) {
	return s.q.listChallengesForBet(ctx, betID)
}

func (t *txStore) ListChallengesForBet(ctx context.Context, betID string) ([]challenge.Challenge, error) {
	return t.q.listChallengesForBet(ctx, betID)
}

// --- VoteStore --------------------------------------------------------------

type voteRow struct {
	ID        string    `db:"id"`
	BetID     string    `db:"bet_id"`
	VoterID   string    `db:"voter_id"`
	Value     string    `db:"value"`
	CreatedAt time.Time `db:"created_at"`
}

func (r voteRow) toDomain() bet.ProofVote {
	return bet.ProofVote{
		ID:        r.ID,
		BetID:     r.BetID,
		VoterID:   r.VoterID,
		Value:     bet.VoteValue(r.Value),
		CreatedAt: r.CreatedAt,
	}
}

func (q queries) createVote(ctx context.Context, v bet.ProofVote) (bet.ProofVote, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.CreatedAt = time.Now().UTC()

	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO proof_votes (id, bet_id, voter_id, value, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, v.ID, v.BetID, v.VoterID, string(v.Value), v.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "proof_votes_bet_id_voter_id_key") {
			return bet.ProofVote{}, apperrors.AlreadyVoted(v.BetID)
		}
		return bet.ProofVote{}, apperrors.Internal("create vote", err)
	}
	return v, nil
}

func (q queries) listVotesForBet(ctx context.Context, betID string) ([]bet.ProofVote, error) {
	var rows []voteRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT id, bet_id, voter_id, value, created_at
		FROM proof_votes
		WHERE bet_id = $1
		ORDER BY created_at
	`, betID)
	if err != nil {
		return nil, apperrors.Internal("list votes", err)
	}
	out := make([]bet.ProofVote, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) CreateVote(ctx context.Context, v bet.ProofVote) (bet.ProofVote, error) {
	return s.q.createVote(ctx, v)
}

func (t *txStore) CreateVote(ctx context.Context, v bet.ProofVote) (bet.ProofVote, error) {
	return t.q.createVote(ctx, v)
}

func (s *Store) ListVotesForBet(ctx context.Context, betID string) ([]bet.ProofVote, error) {
	return s.q.listVotesForBet(ctx, betID)
}

func (t *txStore) ListVotesForBet(ctx context.Context, betID string) ([]bet.ProofVote, error) {
	return t.q.listVotesForBet(ctx, betID)
}

// --- StarStore --------------------------------------------------------------

type starRow struct {
	ID        string    `db:"id"`
	BetID     string    `db:"bet_id"`
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (q queries) getStar(ctx context.Context, betID, userID string) (bet.Star, error) {
	var row starRow
	err := sqlx.GetContext(ctx, q.ext, &row, `
		SELECT id, bet_id, user_id, created_at
		FROM stars
		WHERE bet_id = $1 AND user_id = $2
	`, betID, userID)
	if err != nil {
		return bet.Star{}, mapNotFound(err, "star", betID)
	}
	return bet.Star(row), nil
}

func (q queries) createStar(ctx context.Context, st bet.Star) (bet.Star, error) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	st.CreatedAt = time.Now().UTC()

	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO stars (id, bet_id, user_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, st.ID, st.BetID, st.UserID, st.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "stars_bet_id_user_id_key") {
			return bet.Star{}, apperrors.AlreadyExists("star", st.BetID)
		}
		return bet.Star{}, apperrors.Internal("create star", err)
	}
	return st, nil
}

func (q queries) deleteStar(ctx context.Context, betID, userID string) error {
	res, err := q.ext.ExecContext(ctx, `
		DELETE FROM stars WHERE bet_id = $1 AND user_id = $2
	`, betID, userID)
	if err != nil {
		return apperrors.Internal("delete star", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperrors.NotFound("star", betID)
	}
	return nil
}

func (s *Store) GetStar(ctx context.Context, betID, userID string) (bet.Star, error) {
	return s.q.getStar(ctx, betID, userID)
}

func (t *txStore) GetStar(ctx context.Context, betID, userID string) (bet.Star, error) {
	return t.q.getStar(ctx, betID, userID)
}

func (s *Store) CreateStar(ctx context.Context, st bet.Star) (bet.Star, error) {
	return s.q.createStar(ctx, st)
}

func (t *txStore) CreateStar(ctx context.Context, st bet.Star) (bet.Star, error) {
	return t.q.createStar(ctx, st)
}

func (s *Store) DeleteStar(ctx context.Context, betID, userID string) error {
	return s.q.deleteStar(ctx, betID, userID)
}

func (t *txStore) DeleteStar(ctx context.Context, betID, userID string) error {
	return t.q.deleteStar(ctx, betID, userID)
}

// --- NotificationStore ------------------------------------------------------

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	BetID     string    `db:"bet_id"`
	Message   string    `db:"message"`
	Read      bool      `db:"read"`
	CreatedAt time.Time `db:"created_at"`
}

func (q queries) createNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()

	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, bet_id, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.ID, n.UserID, n.BetID, n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return notification.Notification{}, apperrors.Internal("create notification", err)
	}
	return n, nil
}

func (q queries) listNotificationsForUser(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	var rows []notificationRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT id, user_id, bet_id, message, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, apperrors.Internal("list notifications", err)
	}
	out := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, notification.Notification(r))
	}
	return out, nil
}

func (q queries) countUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := sqlx.GetContext(ctx, q.ext, &count, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE
	`, userID)
	if err != nil {
		return 0, apperrors.Internal("count notifications", err)
	}
	return count, nil
}

func (q queries) markNotificationRead(ctx context.Context, id, userID string) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return apperrors.Internal("mark notification read", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperrors.NotFound("notification", id)
	}
	return nil
}

func (q queries) markAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := q.ext.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE
	`, userID)
	if err != nil {
		return apperrors.Internal("mark notifications read", err)
	}
	return nil
}

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	return s.q.createNotification(ctx, n)
}

func (t *txStore) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	return t.q.createNotification(ctx, n)
}

func (s *Store) ListNotificationsForUser(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	return s.q.listNotificationsForUser(ctx, userID, limit)
}

func (t *txStore) ListNotificationsForUser(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	return t.q.listNotificationsForUser(ctx, userID, limit)
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	return s.q.countUnreadNotifications(ctx, userID)
}

func (t *txStore) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	return t.q.countUnreadNotifications(ctx, userID)
}

func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string) error {
	return s.q.markNotificationRead(ctx, id, userID)
}

func (t *txStore) MarkNotificationRead(ctx context.Context, id, userID string) error {
	return t.q.markNotificationRead(ctx, id, userID)
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return s.q.markAllNotificationsRead(ctx, userID)
}

func (t *txStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return t.q.markAllNotificationsRead(ctx, userID)
}
