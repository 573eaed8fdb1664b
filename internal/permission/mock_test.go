package permission

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// A failed insert part-way through must roll back the cleared grants.
func TestCatalogRepository_ReplaceGrants_RollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	boom := errors.New("database is locked")
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT ref_code FROM capabilities").
		WithArgs(int64(9), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"ref_code"}).AddRow("EMPLOYEE_READ").AddRow("EMPLOYEE_CREATE"))
	mock.ExpectExec("DELETE FROM role_capabilities").WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO role_capabilities").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO role_capabilities").WillReturnError(boom)
	mock.ExpectRollback()

	_, err = NewCatalogRepository(db).ReplaceGrants(t.Context(), 3, []int64{9, 10}, "usr-admin", time.Now())
	if !errors.Is(err, boom) {
		t.Fatalf("ReplaceGrants() error = %v, want %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCatalogRepository_ReplaceGrants_UnknownID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT ref_code FROM capabilities").
		WillReturnRows(sqlmock.NewRows([]string{"ref_code"}).AddRow("EMPLOYEE_READ"))
	mock.ExpectRollback()

	_, err = NewCatalogRepository(db).ReplaceGrants(t.Context(), 3, []int64{9, 404}, "usr-admin", time.Now())
	if !errors.Is(err, ErrCapabilityNotFound) {
		t.Fatalf("ReplaceGrants() error = %v, want ErrCapabilityNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
