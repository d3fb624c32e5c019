//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"student-portal/internal/model"
	"student-portal/internal/repository"
	"student-portal/pkg/database"
	pkgerrors "student-portal/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=postgres password=postgres dbname=student_portal_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "执行迁移失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func newUser(t *testing.T, role model.Role) *model.User {
	t.Helper()
	n := time.Now().UnixNano()
	u := &model.User{
		Username:     fmt.Sprintf("u%d", n),
		Email:        fmt.Sprintf("u%d@uni.edu", n),
		PasswordHash: "$2a$10$placeholder",
		FirstName:    "Test",
		LastName:     string(role),
		Role:         role,
	}
	if err := testDB.Create(u).Error; err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}
	t.Cleanup(func() {
		testDB.Exec("DELETE FROM projects WHERE student_id = ?", u.UserID)
		testDB.Unscoped().Where("user_id = ?", u.UserID).Delete(&model.User{})
	})
	return u
}

func newProject(t *testing.T, repo *repository.Repository, student *model.User) *model.Project {
	t.Helper()
	p := &model.Project{
		StudentID:    student.UserID,
		SupervisorID: student.SupervisorID,
		Title:        "Compiler",
		Description:  "A small compiler",
		Status:       model.StatusPending,
	}
	if err := repo.Project.Create(context.Background(), p); err != nil {
		t.Fatalf("创建项目失败: %v", err)
	}
	return p
}

// ═══════════════════════════════════════════════════════════
// Test: Transaction
// ═══════════════════════════════════════════════════════════

func TestTransaction_Rollback(t *testing.T) {
	student := newUser(t, model.RoleStudent)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	var created *model.Project
	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		created = newProject(t, tx, student)
		return errors.New("回滚")
	})
	if err == nil {
		t.Fatal("期望事务返回错误")
	}

	if _, err := repo.Project.GetByID(ctx, created.ProjectID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("期望回滚后查不到项目，实际: %v", err)
	}
}

func TestTransaction_BeginCommit(t *testing.T) {
	student := newUser(t, model.RoleStudent)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx 失败: %v", err)
	}
	p := newProject(t, repo.WithTx(tx), student)
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("Commit 失败: %v", err)
	}

	found, err := repo.Project.GetByID(ctx, p.ProjectID)
	if err != nil {
		t.Fatalf("提交后查询项目失败: %v", err)
	}
	if found.Status != model.StatusPending || found.Version != 1 {
		t.Errorf("期望 PENDING/v1，实际 %s/v%d", found.Status, found.Version)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Status Compare-And-Set
// ═══════════════════════════════════════════════════════════

func TestCompareAndSetStatus_FirstWriterWins(t *testing.T) {
	student := newUser(t, model.RoleStudent)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	p := newProject(t, repo, student)

	first := repository.StatusCAS{ProjectID: p.ProjectID, From: model.StatusPending, To: model.StatusApproved}
	if err := repo.Project.CompareAndSetStatus(ctx, first); err != nil {
		t.Fatalf("第一次迁移失败: %v", err)
	}

	second := repository.StatusCAS{ProjectID: p.ProjectID, From: model.StatusPending, To: model.StatusRejected}
	if err := repo.Project.CompareAndSetStatus(ctx, second); err != pkgerrors.ErrOptimisticLock {
		t.Errorf("期望 ErrOptimisticLock，得到: %v", err)
	}

	found, _ := repo.Project.GetByID(ctx, p.ProjectID)
	if found.Status != model.StatusApproved {
		t.Errorf("期望状态 APPROVED，实际 %s", found.Status)
	}
	if found.Version != 2 {
		t.Errorf("期望版本 2，实际 %d", found.Version)
	}
}

func TestCompareAndSetStatus_StaleVersion(t *testing.T) {
	student := newUser(t, model.RoleStudent)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	p := newProject(t, repo, student)

	stale := 7
	cas := repository.StatusCAS{
		ProjectID:       p.ProjectID,
		From:            model.StatusPending,
		To:              model.StatusApproved,
		ExpectedVersion: &stale,
	}
	if err := repo.Project.CompareAndSetStatus(ctx, cas); err != pkgerrors.ErrOptimisticLock {
		t.Errorf("期望 ErrOptimisticLock，得到: %v", err)
	}
}

func TestUpdateDetails_OnlyWhilePending(t *testing.T) {
	student := newUser(t, model.RoleStudent)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	p := newProject(t, repo, student)

	p.Title = "Compiler v2"
	if err := repo.Project.UpdateDetails(ctx, p); err != nil {
		t.Fatalf("PENDING 状态修改失败: %v", err)
	}

	_ = repo.Project.CompareAndSetStatus(ctx, repository.StatusCAS{
		ProjectID: p.ProjectID, From: model.StatusPending, To: model.StatusApproved,
	})
	p, _ = repo.Project.GetByID(ctx, p.ProjectID)
	p.Title = "Compiler v3"
	if err := repo.Project.UpdateDetails(ctx, p); err != pkgerrors.ErrOptimisticLock {
		t.Errorf("非 PENDING 状态修改应失败，得到: %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Assignment
// ═══════════════════════════════════════════════════════════

func TestSetSupervisor_AndReassignProjects(t *testing.T) {
	student := newUser(t, model.RoleStudent)
	sup1 := newUser(t, model.RoleSupervisor)
	sup2 := newUser(t, model.RoleSupervisor)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	if err := repo.User.SetSupervisor(ctx, student.UserID, &sup1.UserID, sup1.UserID); err != nil {
		t.Fatalf("SetSupervisor 失败: %v", err)
	}
	p := newProject(t, repo, student)

	if err := repo.User.SetSupervisor(ctx, student.UserID, &sup2.UserID, sup2.UserID); err != nil {
		t.Fatalf("SetSupervisor 覆盖失败: %v", err)
	}
	n, err := repo.Project.ReassignSupervisor(ctx, student.UserID, &sup2.UserID)
	if err != nil || n != 1 {
		t.Fatalf("期望同步 1 个项目，实际 %d, err=%v", n, err)
	}

	students, _ := repo.User.ListBySupervisor(ctx, sup1.UserID)
	if len(students) != 0 {
		t.Errorf("原导师名下不应再有学生，实际 %d", len(students))
	}
	students, _ = repo.User.ListBySupervisor(ctx, sup2.UserID)
	if len(students) != 1 {
		t.Errorf("新导师名下应有 1 名学生，实际 %d", len(students))
	}

	found, _ := repo.Project.GetByID(ctx, p.ProjectID)
	if found.SupervisorID == nil || *found.SupervisorID != sup2.UserID {
		t.Errorf("项目导师应同步为新导师")
	}
}

func TestSetSupervisor_RejectedForNonStudent(t *testing.T) {
	sup1 := newUser(t, model.RoleSupervisor)
	sup2 := newUser(t, model.RoleSupervisor)
	repo := repository.NewRepository(testDB)

	_ = repo.User.SetSupervisor(context.Background(), sup1.UserID, &sup2.UserID, sup2.UserID)
	found, _ := repo.User.GetByID(context.Background(), sup1.UserID)
	if found.SupervisorID != nil {
		t.Error("导师不应持有 supervisor_id")
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Ledger ordering & aggregates
// ═══════════════════════════════════════════════════════════

func TestProgressUpdates_OrderedAndDuplicatesKept(t *testing.T) {
	student := newUser(t, model.RoleStudent)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	p := newProject(t, repo, student)

	base := time.Now().Add(-time.Hour)
	for i, week := range []int{2, 1, 1} {
		u := &model.ProgressUpdate{
			ProjectID:   p.ProjectID,
			WeekNumber:  week,
			Description: fmt.Sprintf("entry %d", i),
			RecordedBy:  student.UserID,
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.ProgressUpdate.Create(ctx, u); err != nil {
			t.Fatalf("写入进度失败: %v", err)
		}
	}

	list, _ := repo.ProgressUpdate.ListByProject(ctx, p.ProjectID)
	if len(list) != 3 {
		t.Fatalf("期望 3 条，实际 %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].Timestamp.Before(list[i-1].Timestamp) {
			t.Error("进度应按时间升序")
		}
	}

	week1, _ := repo.ProgressUpdate.ListByProjectAndWeek(ctx, p.ProjectID, 1)
	if len(week1) != 2 {
		t.Errorf("第 1 周应保留 2 条重复记录，实际 %d", len(week1))
	}
}

func TestEvaluations_LatestAndAverage(t *testing.T) {
	student := newUser(t, model.RoleStudent)
	sup := newUser(t, model.RoleSupervisor)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	p := newProject(t, repo, student)

	avg, err := repo.Evaluation.Average(ctx, p.ProjectID)
	if err != nil || avg != nil {
		t.Fatalf("无评分时平均分应为 nil，实际 %v, err=%v", avg, err)
	}
	if _, err := repo.Evaluation.Latest(ctx, p.ProjectID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("无评分时 Latest 应返回 ErrRecordNotFound，实际 %v", err)
	}

	base := time.Now().Add(-time.Hour)
	for i, score := range []int{70, 90} {
		e := &model.Evaluation{
			ProjectID:   p.ProjectID,
			FinalScore:  score,
			EvaluatorID: sup.UserID,
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Evaluation.Create(ctx, e); err != nil {
			t.Fatalf("写入评分失败: %v", err)
		}
	}

	latest, _ := repo.Evaluation.Latest(ctx, p.ProjectID)
	if latest.FinalScore != 90 {
		t.Errorf("最新评分应为 90，实际 %d", latest.FinalScore)
	}
	avg, _ = repo.Evaluation.Average(ctx, p.ProjectID)
	if avg == nil || *avg != 80 {
		t.Errorf("平均分应为 80，实际 %v", avg)
	}

	bad := &model.Evaluation{ProjectID: p.ProjectID, FinalScore: 150, EvaluatorID: sup.UserID}
	if err := repo.Evaluation.Create(ctx, bad); err == nil {
		t.Error("数据库约束应拒绝超出范围的分数")
	}
}

func TestEvaluations_UpdateDeleteExists(t *testing.T) {
	student := newUser(t, model.RoleStudent)
	sup := newUser(t, model.RoleSupervisor)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	p := newProject(t, repo, student)

	if ok, err := repo.Evaluation.ExistsByProject(ctx, p.ProjectID); err != nil || ok {
		t.Fatalf("无评分时应不存在，实际 %v, err=%v", ok, err)
	}

	at := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	e := &model.Evaluation{ProjectID: p.ProjectID, FinalScore: 60, FinalComment: "初评", EvaluatorID: sup.UserID, Timestamp: at}
	if err := repo.Evaluation.Create(ctx, e); err != nil {
		t.Fatalf("写入评分失败: %v", err)
	}

	e.FinalScore, e.FinalComment = 75, "复评"
	if err := repo.Evaluation.Update(ctx, e); err != nil {
		t.Fatalf("修改评分失败: %v", err)
	}
	got, err := repo.Evaluation.GetByID(ctx, e.EvaluationID)
	if err != nil || got.FinalScore != 75 || got.FinalComment != "复评" {
		t.Fatalf("评分未更新，实际 %+v, err=%v", got, err)
	}
	if !got.Timestamp.Equal(at) {
		t.Errorf("评分时间不应改变，实际 %v", got.Timestamp)
	}

	if ok, _ := repo.Evaluation.ExistsByProject(ctx, p.ProjectID); !ok {
		t.Error("应存在评分")
	}
	if err := repo.Evaluation.Delete(ctx, e.EvaluationID); err != nil {
		t.Fatalf("删除评分失败: %v", err)
	}
	if _, err := repo.Evaluation.GetByID(ctx, e.EvaluationID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("删除后应查不到，实际 %v", err)
	}
}

func TestUserUpdateProfile_OptimisticLock(t *testing.T) {
	sup := newUser(t, model.RoleSupervisor)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	stale := *sup
	sup.FirstName = "Renamed"
	if err := repo.User.UpdateProfile(ctx, sup); err != nil {
		t.Fatalf("修改资料失败: %v", err)
	}
	if sup.Version != stale.Version+1 {
		t.Errorf("版本应递增，实际 %d", sup.Version)
	}

	stale.FirstName = "Lost"
	if err := repo.User.UpdateProfile(ctx, &stale); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("旧版本应冲突，实际 %v", err)
	}
	found, _ := repo.User.GetByID(ctx, sup.UserID)
	if found.FirstName != "Renamed" || found.Role != model.RoleSupervisor {
		t.Errorf("资料应保持首次修改且角色不变，实际 %+v", found)
	}
}
