package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/shuttleboard/shuttleboard/internal/model"
)

type courtRow struct {
	ID        int64 `gorm:"primaryKey"`
	TeamID    int64 `gorm:"index"`
	Name      string
	Player1ID *int64
	Player2ID *int64
	Player3ID *int64
	Player4ID *int64
	StartedAt *time.Time
	EndedAt   *time.Time
}

func (courtRow) TableName() string { return "courts" }

type matchRow struct {
	ID        int64 `gorm:"primaryKey"`
	TeamID    int64 `gorm:"index"`
	CourtID   int64 `gorm:"index"`
	Player1ID int64
	Player2ID int64
	Player3ID int64
	Player4ID int64
	Status    string
	StartedAt time.Time
	EndedAt   *time.Time
}

func (matchRow) TableName() string { return "matches" }

type queueEntryRow struct {
	ID             int64 `gorm:"primaryKey"`
	TeamID         int64 `gorm:"index:idx_queue_team_status"`
	PlayerID       int64
	CourtID        *int64
	Status         string `gorm:"index:idx_queue_team_status"`
	SequenceNumber int64
	CreatedAt      time.Time
	CalledAt       *time.Time
	ServedAt       *time.Time
}

func (queueEntryRow) TableName() string { return "queue_entries" }

type playerRow struct {
	MemberID  int64 `gorm:"primaryKey"`
	TeamID    int64 `gorm:"primaryKey"`
	Name      string
	Contact   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (playerRow) TableName() string { return "players" }

type memberRow struct {
	ID          int64 `gorm:"primaryKey"`
	TeamID      int64 `gorm:"primaryKey;index"`
	DisplayName string
	Contact     string
}

func (memberRow) TableName() string { return "team_members" }

// Postgres implements Store and Directory on a shared community database. The
// team_members table is owned by the membership platform and only read here.
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&courtRow{}, &matchRow{}, &queueEntryRow{}, &playerRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func courtFromRow(r *courtRow) *model.Court {
	c := &model.Court{
		ID:        model.CourtID(r.ID),
		TeamID:    model.TeamID(r.TeamID),
		Name:      r.Name,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
	}
	for i, p := range []*int64{r.Player1ID, r.Player2ID, r.Player3ID, r.Player4ID} {
		if p != nil {
			id := model.MemberID(*p)
			c.Slots[i] = &id
		}
	}
	return c
}

func courtToRow(c *model.Court) *courtRow {
	r := &courtRow{
		ID:        int64(c.ID),
		TeamID:    int64(c.TeamID),
		Name:      c.Name,
		StartedAt: c.StartedAt,
		EndedAt:   c.EndedAt,
	}
	slots := []**int64{&r.Player1ID, &r.Player2ID, &r.Player3ID, &r.Player4ID}
	for i, s := range c.Slots {
		if s != nil {
			id := int64(*s)
			*slots[i] = &id
		}
	}
	return r
}

func (p *Postgres) GetCourt(ctx context.Context, courtID model.CourtID) (*model.Court, error) {
	var row courtRow
	if err := p.db.WithContext(ctx).First(&row, int64(courtID)).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return courtFromRow(&row), nil
}

func (p *Postgres) GetCourtsByTeam(ctx context.Context, teamID model.TeamID) ([]model.Court, error) {
	var rows []courtRow
	if err := p.db.WithContext(ctx).
		Where("team_id = ?", int64(teamID)).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Court, 0, len(rows))
	for i := range rows {
		out = append(out, *courtFromRow(&rows[i]))
	}
	return out, nil
}

func (p *Postgres) CreateCourt(ctx context.Context, court *model.Court) error {
	row := courtToRow(court)
	row.ID = 0
	if err := p.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	court.ID = model.CourtID(row.ID)
	return nil
}

func (p *Postgres) UpdateCourt(ctx context.Context, court *model.Court) error {
	row := courtToRow(court)
	res := p.db.WithContext(ctx).Model(&courtRow{}).
		Where("id = ?", row.ID).
		Select("Name", "Player1ID", "Player2ID", "Player3ID", "Player4ID", "StartedAt", "EndedAt").
		Updates(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ClearCourtSlots(ctx context.Context, courtID model.CourtID) error {
	res := p.db.WithContext(ctx).Model(&courtRow{}).
		Where("id = ?", int64(courtID)).
		Updates(map[string]any{
			"player1_id": nil,
			"player2_id": nil,
			"player3_id": nil,
			"player4_id": nil,
			"started_at": nil,
			"ended_at":   nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateMatch(ctx context.Context, match *model.Match) error {
	row := &matchRow{
		TeamID:    int64(match.TeamID),
		CourtID:   int64(match.CourtID),
		Player1ID: int64(match.Players[0]),
		Player2ID: int64(match.Players[1]),
		Player3ID: int64(match.Players[2]),
		Player4ID: int64(match.Players[3]),
		Status:    string(match.Status),
		StartedAt: match.StartedAt,
		EndedAt:   match.EndedAt,
	}
	if err := p.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	match.ID = row.ID
	return nil
}

func (p *Postgres) FinishMatch(ctx context.Context, matchID int64, endedAt time.Time) error {
	res := p.db.WithContext(ctx).Model(&matchRow{}).
		Where("id = ?", matchID).
		Updates(map[string]any{
			"status":   string(model.MatchFinished),
			"ended_at": endedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetOngoingMatchByCourt(ctx context.Context, courtID model.CourtID) (*model.Match, error) {
	var row matchRow
	err := p.db.WithContext(ctx).
		Where("court_id = ? AND status = ?", int64(courtID), string(model.MatchOngoing)).
		Order("started_at desc").
		First(&row).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &model.Match{
		ID:      row.ID,
		TeamID:  model.TeamID(row.TeamID),
		CourtID: model.CourtID(row.CourtID),
		Players: [model.SlotCount]model.MemberID{
			model.MemberID(row.Player1ID),
			model.MemberID(row.Player2ID),
			model.MemberID(row.Player3ID),
			model.MemberID(row.Player4ID),
		},
		Status:    model.MatchStatus(row.Status),
		StartedAt: row.StartedAt,
		EndedAt:   row.EndedAt,
	}, nil
}

func entryFromRow(r *queueEntryRow) model.QueueEntry {
	e := model.QueueEntry{
		ID:             r.ID,
		TeamID:         model.TeamID(r.TeamID),
		PlayerID:       model.MemberID(r.PlayerID),
		Status:         model.QueueStatus(r.Status),
		SequenceNumber: r.SequenceNumber,
		CreatedAt:      r.CreatedAt,
		CalledAt:       r.CalledAt,
		ServedAt:       r.ServedAt,
	}
	if r.CourtID != nil {
		id := model.CourtID(*r.CourtID)
		e.CourtID = &id
	}
	return e
}

func (p *Postgres) GetWaitingQueueByTeam(ctx context.Context, teamID model.TeamID) ([]model.QueueEntry, error) {
	var rows []queueEntryRow
	if err := p.db.WithContext(ctx).
		Where("team_id = ? AND status = ?", int64(teamID), string(model.QueueWaiting)).
		Order("sequence_number asc, created_at asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.QueueEntry, 0, len(rows))
	for i := range rows {
		out = append(out, entryFromRow(&rows[i]))
	}
	return out, nil
}

func (p *Postgres) CreateQueueEntry(ctx context.Context, teamID model.TeamID, playerID model.MemberID, courtID *model.CourtID, status model.QueueStatus) (*model.QueueEntry, error) {
	var created model.QueueEntry
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		if err := tx.Model(&queueEntryRow{}).
			Where("team_id = ?", int64(teamID)).
			Select("COALESCE(MAX(sequence_number), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		now := time.Now()
		row := &queueEntryRow{
			TeamID:         int64(teamID),
			PlayerID:       int64(playerID),
			Status:         string(status),
			SequenceNumber: maxSeq + 1,
			CreatedAt:      now,
		}
		if courtID != nil {
			id := int64(*courtID)
			row.CourtID = &id
		}
		if status == model.QueueServed {
			row.ServedAt = &now
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		created = entryFromRow(row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (p *Postgres) UpdateQueueStatus(ctx context.Context, entryID int64, status model.QueueStatus) error {
	updates := map[string]any{"status": string(status)}
	now := time.Now()
	switch status {
	case model.QueueCalled:
		updates["called_at"] = now
	case model.QueueServed:
		updates["served_at"] = now
	}
	res := p.db.WithContext(ctx).Model(&queueEntryRow{}).
		Where("id = ?", entryID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteWaitingByTeam(ctx context.Context, teamID model.TeamID) (int, error) {
	res := p.db.WithContext(ctx).
		Where("team_id = ? AND status = ?", int64(teamID), string(model.QueueWaiting)).
		Delete(&queueEntryRow{})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (p *Postgres) UpsertPlayer(ctx context.Context, teamID model.TeamID, member model.Member) (*model.Player, error) {
	now := time.Now()
	row := playerRow{
		MemberID: int64(member.ID),
		TeamID:   int64(teamID),
	}
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("member_id = ? AND team_id = ?", row.MemberID, row.TeamID).First(&row)
		if res.Error != nil && !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return res.Error
		}
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			row.CreatedAt = now
		}
		row.Name = member.DisplayName
		row.Contact = member.Contact
		row.UpdatedAt = now
		return tx.Save(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &model.Player{
		MemberID:  model.MemberID(row.MemberID),
		TeamID:    model.TeamID(row.TeamID),
		Name:      row.Name,
		Contact:   row.Contact,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (p *Postgres) GetTeamMembers(ctx context.Context, teamID model.TeamID) ([]model.Member, error) {
	var rows []memberRow
	if err := p.db.WithContext(ctx).
		Where("team_id = ?", int64(teamID)).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Member, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Member{
			ID:          model.MemberID(r.ID),
			DisplayName: r.DisplayName,
			Contact:     r.Contact,
		})
	}
	return out, nil
}
