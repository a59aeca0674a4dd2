package shopifysync

import (
	"github.com/cosmoos/cosmo_backend/utils"
	"gorm.io/gorm"
)

// createOrReload inserts row inside a savepoint. When a concurrent writer
// won the unique key, the savepoint is rolled back and reload fills row
// from the winner; created is false in that case. Outside a transaction
// the insert runs bare.
func createOrReload(tx *gorm.DB, savepoint string, row any, reload func() error) (created bool, err error) {
	_, inTx := tx.Statement.ConnPool.(gorm.TxCommitter)
	if inTx {
		if err := tx.SavePoint(savepoint).Error; err != nil {
			return false, err
		}
	}
	err = tx.Create(row).Error
	if err == nil {
		return true, nil
	}
	if !utils.IsDuplicateKeyErr(err) {
		return false, err
	}
	if inTx {
		if err := tx.RollbackTo(savepoint).Error; err != nil {
			return false, err
		}
	}
	return false, reload()
}
