package docker

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeLister serves a scripted container list.
type fakeLister struct {
	containers []Container
	err        error
	sawAll     bool
}

var _ Lister = (*fakeLister)(nil)

func (f *fakeLister) ListContainers(_ context.Context, all bool) ([]Container, error) {
	f.sawAll = all
	return f.containers, f.err
}

func Test_NewClient_RequiresSocketPath(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Fatal("NewClient(\"\") error = nil, want error")
	}
}

func Test_ListExited_Cases(t *testing.T) {
	tests := []struct {
		name       string
		containers []Container
		err        error
		want       []string
		wantErr    bool
	}{
		{
			name: "only exited containers are reported",
			containers: []Container{
				{Name: "jellyfin", State: "running", Created: time.Now()},
				{Name: "sonarr", State: "exited", Status: "Exited (1) 2 hours ago"},
				{Name: "radarr", State: "exited", Status: "Exited (137) 5 minutes ago"},
				{Name: "transmission", State: "paused"},
			},
			want: []string{"sonarr", "radarr"},
		},
		{
			name:       "all healthy",
			containers: []Container{{Name: "jellyfin", State: "running"}},
			want:       nil,
		},
		{
			name:    "daemon error propagates",
			err:     errors.New("cannot connect to the Docker daemon"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &fakeLister{containers: tt.containers, err: tt.err}
			got, err := ListExited(context.Background(), lister)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ListExited() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ListExited() error: %v", err)
			}
			if !lister.sawAll {
				t.Error("ListExited() must query all containers, not only running ones")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListExited() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ListExited()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
