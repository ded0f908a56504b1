package database

import "trader-game/internal/models"

func (d *Database) SaveAlert(alert *models.ReserveAlert) error {
	_, err := d.db.Exec(`
		INSERT INTO reserve_alerts (game_type, balance, target, message, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)`,
		alert.GameType, alert.Balance, alert.Target, alert.Message)
	return err
}

func (d *Database) CleanupOldAlerts(days int) error {
	_, err := d.db.Exec(`
		DELETE FROM reserve_alerts
		WHERE created_at < NOW() - INTERVAL '1 day' * $1`,
		days)
	return err
}
