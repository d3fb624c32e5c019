package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"student-portal/internal/dto"
	"student-portal/internal/model"
	pkgerrors "student-portal/pkg/errors"
	"student-portal/pkg/mq"
)

func TestEvaluationSubmit_ScoreOutOfRange(t *testing.T) {
	env := newTestEnv()
	student := env.addUser("stu-1", model.RoleStudent)
	sup := env.addUser("sup-1", model.RoleSupervisor)
	env.assign(student.UserID, sup.UserID)
	p := env.addProject(student.UserID, model.StatusApproved)
	ctx := context.Background()

	for _, score := range []int{150, -1, 101} {
		_, err := env.svc.Evaluation.Submit(ctx, sessionOf(sup), &dto.SubmitEvaluationRequest{
			ProjectID:  p.ProjectID,
			FinalScore: intPtr(score),
		})
		if !errors.Is(err, pkgerrors.ErrValidation) {
			t.Errorf("分数 %d 应返回 Validation，实际: %v", score, err)
		}
	}
	if len(env.evals.evaluations) != 0 {
		t.Errorf("越界分数不应写入评分，实际 %d 条", len(env.evals.evaluations))
	}

	_, err := env.svc.Evaluation.Submit(ctx, sessionOf(sup), &dto.SubmitEvaluationRequest{ProjectID: p.ProjectID})
	if !errors.Is(err, ErrScoreRequired) {
		t.Errorf("缺少分数应返回 ErrScoreRequired，实际: %v", err)
	}
}

func TestEvaluationSubmit_Boundaries(t *testing.T) {
	env := newTestEnv()
	student := env.addUser("stu-1", model.RoleStudent)
	admin := env.addUser("admin-1", model.RoleAdmin)
	p := env.addProject(student.UserID, model.StatusPending)
	ctx := context.Background()

	for _, score := range []int{0, 100} {
		if _, err := env.svc.Evaluation.Submit(ctx, sessionOf(admin), &dto.SubmitEvaluationRequest{
			ProjectID:    p.ProjectID,
			FinalScore:   intPtr(score),
			FinalComment: "完成度高",
		}); err != nil {
			t.Errorf("边界分数 %d 应被接受: %v", score, err)
		}
	}
	if keys := env.events.Keys(); len(keys) != 2 || keys[0] != mq.RoutingEvaluationRecorded {
		t.Errorf("每次评分应发布事件，实际 %v", keys)
	}
}

func TestEvaluationSubmit_StudentRejected(t *testing.T) {
	env := newTestEnv()
	student := env.addUser("stu-1", model.RoleStudent)
	p := env.addProject(student.UserID, model.StatusApproved)

	_, err := env.svc.Evaluation.Submit(context.Background(), sessionOf(student), &dto.SubmitEvaluationRequest{
		ProjectID:    p.ProjectID,
		FinalScore:   intPtr(90),
		FinalComment: "完成度高",
	})
	if !errors.Is(err, pkgerrors.ErrPermission) {
		t.Errorf("学生评分应被拒绝，实际: %v", err)
	}
}

func TestEvaluationSubmit_UnknownProject(t *testing.T) {
	env := newTestEnv()
	admin := env.addUser("admin-1", model.RoleAdmin)

	_, err := env.svc.Evaluation.Submit(context.Background(), sessionOf(admin), &dto.SubmitEvaluationRequest{
		ProjectID:    "missing",
		FinalScore:   intPtr(80),
		FinalComment: "完成度高",
	})
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Errorf("期望 NotFound，实际: %v", err)
	}
}

func TestEvaluationLatestAndAverage(t *testing.T) {
	env := newTestEnv()
	student := env.addUser("stu-1", model.RoleStudent)
	admin := env.addUser("admin-1", model.RoleAdmin)
	p := env.addProject(student.UserID, model.StatusApproved)
	ctx := context.Background()

	latest, err := env.svc.Evaluation.Latest(ctx, sessionOf(student), p.ProjectID)
	if err != nil || latest != nil {
		t.Fatalf("无评分时 Latest 应为 nil，实际 %+v (%v)", latest, err)
	}
	avg, err := env.svc.Evaluation.Average(ctx, sessionOf(student), p.ProjectID)
	if err != nil || avg.Average != nil {
		t.Fatalf("无评分时 Average 应为 nil，实际 %+v (%v)", avg, err)
	}

	evalSvc := env.svc.Evaluation.(*evaluationService)
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, score := range []int{70, 90} {
		at := base.Add(time.Duration(i) * time.Hour)
		evalSvc.now = func() time.Time { return at }
		if _, err := env.svc.Evaluation.Submit(ctx, sessionOf(admin), &dto.SubmitEvaluationRequest{
			ProjectID:    p.ProjectID,
			FinalScore:   intPtr(score),
			FinalComment: "完成度高",
		}); err != nil {
			t.Fatalf("Submit 应成功: %v", err)
		}
	}

	latest, err = env.svc.Evaluation.Latest(ctx, sessionOf(student), p.ProjectID)
	if err != nil || latest == nil || latest.FinalScore != 90 {
		t.Errorf("最新评分应为 90，实际 %+v (%v)", latest, err)
	}
	avg, err = env.svc.Evaluation.Average(ctx, sessionOf(student), p.ProjectID)
	if err != nil || avg.Average == nil || *avg.Average != 80 {
		t.Errorf("平均分应为 80，实际 %+v (%v)", avg, err)
	}

	list, err := env.svc.Evaluation.ListByProject(ctx, sessionOf(admin), p.ProjectID)
	if err != nil || len(list) != 2 {
		t.Errorf("应有 2 条评分，实际 %d (%v)", len(list), err)
	}
}

func TestEvaluationSubmit_Comment(t *testing.T) {
	env := newTestEnv()
	student := env.addUser("stu-1", model.RoleStudent)
	admin := env.addUser("admin-1", model.RoleAdmin)
	p := env.addProject(student.UserID, model.StatusApproved)
	ctx := context.Background()

	tests := []struct {
		name    string
		comment string
		want    error
	}{
		{"缺少评语", "", ErrCommentRequired},
		{"评语仅含空白", "   ", ErrCommentRequired},
		{"评语过长", strings.Repeat("评", model.MaxCommentLen+1), ErrCommentTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Evaluation.Submit(ctx, sessionOf(admin), &dto.SubmitEvaluationRequest{
				ProjectID:    p.ProjectID,
				FinalScore:   intPtr(80),
				FinalComment: tt.comment,
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("期望 %v，实际: %v", tt.want, err)
			}
		})
	}

	resp, err := env.svc.Evaluation.Submit(ctx, sessionOf(admin), &dto.SubmitEvaluationRequest{
		ProjectID:    p.ProjectID,
		FinalScore:   intPtr(80),
		FinalComment: strings.Repeat("评", model.MaxCommentLen),
	})
	if err != nil {
		t.Fatalf("上限长度的评语应被接受: %v", err)
	}
	if len(env.evals.evaluations) != 1 || resp.FinalScore != 80 {
		t.Errorf("应只写入 1 条评分，实际 %d", len(env.evals.evaluations))
	}
}

func TestEvaluationUpdateAndDelete(t *testing.T) {
	env := newTestEnv()
	student := env.addUser("stu-1", model.RoleStudent)
	sup := env.addUser("sup-1", model.RoleSupervisor)
	other := env.addUser("sup-2", model.RoleSupervisor)
	admin := env.addUser("admin-1", model.RoleAdmin)
	env.assign(student.UserID, sup.UserID)
	p := env.addProject(student.UserID, model.StatusApproved)
	ctx := context.Background()

	evalSvc := env.svc.Evaluation.(*evaluationService)
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	evalSvc.now = func() time.Time { return at }
	created, err := env.svc.Evaluation.Submit(ctx, sessionOf(sup), &dto.SubmitEvaluationRequest{
		ProjectID: p.ProjectID, FinalScore: intPtr(70), FinalComment: "初评",
	})
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}

	update := &dto.UpdateEvaluationRequest{FinalScore: intPtr(85), FinalComment: " 复评 "}
	if _, err := env.svc.Evaluation.Update(ctx, sessionOf(other), created.ID, update); !errors.Is(err, ErrEvaluationNotOwner) {
		t.Errorf("非评分人修改应被拒绝，实际: %v", err)
	}
	if _, err := env.svc.Evaluation.Update(ctx, sessionOf(student), created.ID, update); !errors.Is(err, ErrEvaluationPermission) {
		t.Errorf("学生修改应被拒绝，实际: %v", err)
	}
	if _, err := env.svc.Evaluation.Update(ctx, sessionOf(sup), "missing", update); !errors.Is(err, ErrEvaluationNotFound) {
		t.Errorf("期望 ErrEvaluationNotFound，实际: %v", err)
	}
	bad := &dto.UpdateEvaluationRequest{FinalScore: intPtr(85), FinalComment: " "}
	if _, err := env.svc.Evaluation.Update(ctx, sessionOf(sup), created.ID, bad); !errors.Is(err, ErrCommentRequired) {
		t.Errorf("空评语应被拒绝，实际: %v", err)
	}

	evalSvc.now = func() time.Time { return at.Add(time.Hour) }
	got, err := env.svc.Evaluation.Update(ctx, sessionOf(sup), created.ID, update)
	if err != nil {
		t.Fatalf("Update 应成功: %v", err)
	}
	if got.FinalScore != 85 || got.FinalComment != "复评" {
		t.Errorf("评分未更新，实际 %+v", got)
	}
	stored := env.evals.evaluations[0]
	if !stored.Timestamp.Equal(at) {
		t.Errorf("修改不应改变评分时间，实际 %v", stored.Timestamp)
	}

	exists, err := env.svc.Evaluation.Exists(ctx, sessionOf(student), p.ProjectID)
	if err != nil || !exists.Exists {
		t.Errorf("应存在评分，实际 %+v (%v)", exists, err)
	}

	if err := env.svc.Evaluation.Delete(ctx, sessionOf(other), created.ID); !errors.Is(err, pkgerrors.ErrPermission) {
		t.Errorf("非评分人删除应被拒绝，实际: %v", err)
	}
	if err := env.svc.Evaluation.Delete(ctx, sessionOf(admin), created.ID); err != nil {
		t.Fatalf("管理员删除应成功: %v", err)
	}
	exists, err = env.svc.Evaluation.Exists(ctx, sessionOf(student), p.ProjectID)
	if err != nil || exists.Exists {
		t.Errorf("删除后不应存在评分，实际 %+v (%v)", exists, err)
	}
}

func TestEvaluationExists_NotVisible(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("stu-1", model.RoleStudent)
	other := env.addUser("stu-2", model.RoleStudent)
	p := env.addProject(owner.UserID, model.StatusApproved)

	if _, err := env.svc.Evaluation.Exists(context.Background(), sessionOf(other), p.ProjectID); !errors.Is(err, pkgerrors.ErrPermission) {
		t.Errorf("他人项目应被拒绝，实际: %v", err)
	}
}

// ── 反馈 ──

func TestFeedbackCreate(t *testing.T) {
	env := newTestEnv()
	student := env.addUser("stu-1", model.RoleStudent)
	sup := env.addUser("sup-1", model.RoleSupervisor)
	other := env.addUser("sup-2", model.RoleSupervisor)
	env.assign(student.UserID, sup.UserID)
	p := env.addProject(student.UserID, model.StatusApproved)
	ctx := context.Background()

	if _, err := env.svc.Feedback.Create(ctx, sessionOf(sup), &dto.CreateFeedbackRequest{
		ProjectID: p.ProjectID, Comment: "结构清晰", Rating: 4,
	}); err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	tests := []struct {
		name string
		sess *model.User
		req  dto.CreateFeedbackRequest
		want error
	}{
		{"评级过高", sup, dto.CreateFeedbackRequest{ProjectID: p.ProjectID, Comment: "x", Rating: 6}, pkgerrors.ErrValidation},
		{"评级过低", sup, dto.CreateFeedbackRequest{ProjectID: p.ProjectID, Comment: "x", Rating: 0}, pkgerrors.ErrValidation},
		{"内容为空", sup, dto.CreateFeedbackRequest{ProjectID: p.ProjectID, Rating: 3}, pkgerrors.ErrValidation},
		{"学生不能反馈", student, dto.CreateFeedbackRequest{ProjectID: p.ProjectID, Comment: "x", Rating: 3}, pkgerrors.ErrPermission},
		{"非所属导师", other, dto.CreateFeedbackRequest{ProjectID: p.ProjectID, Comment: "x", Rating: 3}, pkgerrors.ErrPermission},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Feedback.Create(ctx, sessionOf(tt.sess), &tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("期望 %v，实际: %v", tt.want, err)
			}
		})
	}

	list, err := env.svc.Feedback.ListByProject(ctx, sessionOf(student), p.ProjectID)
	if err != nil || len(list) != 1 {
		t.Errorf("应有 1 条反馈，实际 %d (%v)", len(list), err)
	}
	avg, err := env.svc.Feedback.AverageRating(ctx, sessionOf(student), p.ProjectID)
	if err != nil || avg.Average == nil || *avg.Average != 4 {
		t.Errorf("平均评级应为 4，实际 %+v (%v)", avg, err)
	}
}

func TestFeedbackUpdateAndDelete(t *testing.T) {
	env := newTestEnv()
	student := env.addUser("stu-1", model.RoleStudent)
	sup := env.addUser("sup-1", model.RoleSupervisor)
	other := env.addUser("sup-2", model.RoleSupervisor)
	admin := env.addUser("admin-1", model.RoleAdmin)
	env.assign(student.UserID, sup.UserID)
	p := env.addProject(student.UserID, model.StatusApproved)
	ctx := context.Background()

	created, err := env.svc.Feedback.Create(ctx, sessionOf(sup), &dto.CreateFeedbackRequest{
		ProjectID: p.ProjectID, Comment: "结构清晰", Rating: 4,
	})
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	update := &dto.UpdateFeedbackRequest{Comment: "需补充测试", Rating: 2}
	if _, err := env.svc.Feedback.Update(ctx, sessionOf(other), created.ID, update); !errors.Is(err, ErrFeedbackNotOwner) {
		t.Errorf("非作者修改应被拒绝，实际: %v", err)
	}
	if _, err := env.svc.Feedback.Update(ctx, sessionOf(sup), "missing", update); !errors.Is(err, ErrFeedbackNotFound) {
		t.Errorf("期望 ErrFeedbackNotFound，实际: %v", err)
	}
	if _, err := env.svc.Feedback.Update(ctx, sessionOf(sup), created.ID, &dto.UpdateFeedbackRequest{Comment: "x", Rating: 9}); !errors.Is(err, ErrRatingOutOfRange) {
		t.Errorf("评级越界应被拒绝，实际: %v", err)
	}

	got, err := env.svc.Feedback.Update(ctx, sessionOf(sup), created.ID, update)
	if err != nil || got.Rating != 2 || got.Comment != "需补充测试" {
		t.Fatalf("Update 应成功，实际 %+v (%v)", got, err)
	}

	if err := env.svc.Feedback.Delete(ctx, sessionOf(student), created.ID); !errors.Is(err, ErrFeedbackPermission) {
		t.Errorf("学生删除应被拒绝，实际: %v", err)
	}
	if err := env.svc.Feedback.Delete(ctx, sessionOf(admin), created.ID); err != nil {
		t.Fatalf("管理员删除应成功: %v", err)
	}
	if len(env.feedback.items) != 0 {
		t.Errorf("反馈应被删除，实际 %d 条", len(env.feedback.items))
	}
}
