package service

import (
	"context"
	"errors"
	"testing"

	"student-portal/internal/access"
	"student-portal/internal/dto"
	"student-portal/internal/model"
	pkgerrors "student-portal/pkg/errors"
)

func TestDashboard_Student(t *testing.T) {
	env := newTestEnv()
	student := env.addUser("stu-1", model.RoleStudent)
	sup := env.addUser("sup-1", model.RoleSupervisor)
	env.assign(student.UserID, sup.UserID)
	p := env.addProject(student.UserID, model.StatusApproved)
	ctx := context.Background()

	if _, err := env.svc.Progress.Record(ctx, sessionOf(student), &dto.RecordProgressRequest{ProjectID: p.ProjectID, WeekNumber: 1, Description: "x"}); err != nil {
		t.Fatalf("记录进度应成功: %v", err)
	}
	if _, err := env.svc.Evaluation.Submit(ctx, sessionOf(sup), &dto.SubmitEvaluationRequest{ProjectID: p.ProjectID, FinalScore: intPtr(88), FinalComment: "良好"}); err != nil {
		t.Fatalf("评分应成功: %v", err)
	}

	board, err := env.svc.Dashboard.ForSession(ctx, sessionOf(student))
	if err != nil {
		t.Fatalf("ForSession 应成功: %v", err)
	}
	if board.Student == nil || board.Supervisor != nil || board.Admin != nil {
		t.Fatal("学生只应得到学生看板")
	}
	if board.Student.Supervisor == nil || board.Student.Supervisor.ID != sup.UserID {
		t.Errorf("看板应包含导师信息")
	}
	if len(board.Student.Projects) != 1 {
		t.Fatalf("期望 1 个项目，实际 %d", len(board.Student.Projects))
	}
	item := board.Student.Projects[0]
	if item.ProgressCount != 1 || item.LatestEvaluation == nil || item.LatestEvaluation.FinalScore != 88 {
		t.Errorf("项目概览不符: %+v", item)
	}
}

func TestDashboard_Supervisor(t *testing.T) {
	env := newTestEnv()
	stu1 := env.addUser("stu-1", model.RoleStudent)
	stu2 := env.addUser("stu-2", model.RoleStudent)
	sup := env.addUser("sup-1", model.RoleSupervisor)
	env.assign(stu1.UserID, sup.UserID)
	env.assign(stu2.UserID, sup.UserID)
	env.addProject(stu1.UserID, model.StatusPending)
	env.addProject(stu2.UserID, model.StatusInProgress)
	env.addProject(stu2.UserID, model.StatusCompleted)

	board, err := env.svc.Dashboard.ForSession(context.Background(), sessionOf(sup))
	if err != nil {
		t.Fatalf("ForSession 应成功: %v", err)
	}
	s := board.Supervisor
	if s == nil || len(s.Students) != 2 || len(s.Projects) != 3 {
		t.Fatalf("导师看板不符: %+v", s)
	}
	if s.PendingCount != 1 || s.ActiveCount != 1 {
		t.Errorf("期望待审 1 / 进行中 1，实际 %d / %d", s.PendingCount, s.ActiveCount)
	}
}

func TestDashboard_Admin(t *testing.T) {
	env := newTestEnv()
	admin := env.addUser("admin-1", model.RoleAdmin)
	stu := env.addUser("stu-1", model.RoleStudent)
	env.addUser("sup-1", model.RoleSupervisor)
	env.addProject(stu.UserID, model.StatusPending)
	env.addProject(stu.UserID, model.StatusCompleted)
	env.addProject(stu.UserID, model.StatusRejected)

	board, err := env.svc.Dashboard.ForSession(context.Background(), sessionOf(admin))
	if err != nil {
		t.Fatalf("ForSession 应成功: %v", err)
	}
	a := board.Admin
	if a.TotalStudents != 1 || a.TotalSupervisors != 1 || a.TotalProjects != 3 {
		t.Errorf("统计不符: %+v", a)
	}
	if a.CompletionRate != 33.3 {
		t.Errorf("完成率应为 33.3，实际 %v", a.CompletionRate)
	}
	if len(a.ByStatus) != len(model.ProjectStatuses) || a.ByStatus[string(model.StatusApproved)] != 0 {
		t.Errorf("各状态都应出现在统计中: %v", a.ByStatus)
	}
}

func TestDashboard_Anonymous(t *testing.T) {
	env := newTestEnv()

	if _, err := env.svc.Dashboard.ForSession(context.Background(), access.Anonymous()); !errors.Is(err, pkgerrors.ErrAuth) {
		t.Errorf("匿名会话应返回 Auth，实际: %v", err)
	}
}

func TestDashboard_ProjectProgress(t *testing.T) {
	env := newTestEnv()
	admin := env.addUser("admin-1", model.RoleAdmin)
	stu := env.addUser("stu-1", model.RoleStudent)
	p := env.addProject(stu.UserID, model.StatusApproved)
	ctx := context.Background()

	resp, err := env.svc.Dashboard.ProjectProgress(ctx, sessionOf(admin), p.ProjectID)
	if err != nil {
		t.Fatalf("ProjectProgress 应成功: %v", err)
	}
	if resp.UpdateCount != 0 || resp.AverageScore != nil {
		t.Errorf("无记录时应为零值，实际 %+v", resp)
	}

	if _, err := env.svc.Dashboard.ProjectProgress(ctx, sessionOf(stu), p.ProjectID); !errors.Is(err, pkgerrors.ErrPermission) {
		t.Errorf("学生不能查看，实际: %v", err)
	}
}

func TestCompletionRate(t *testing.T) {
	tests := []struct {
		completed, total int64
		want             float64
	}{
		{0, 0, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{5, 5, 100},
	}
	for _, tt := range tests {
		if got := completionRate(tt.completed, tt.total); got != tt.want {
			t.Errorf("completionRate(%d, %d) = %v，期望 %v", tt.completed, tt.total, got, tt.want)
		}
	}
}
