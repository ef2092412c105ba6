package sqlinline

const QInsertJob = `--sql 7ee11b5a-1a3a-4286-b12d-fbb31558ff20
insert into jobs(id, story_id, type, status, snapshot, progress_version, created_at)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::jsonb, $6::bigint, now());
`

// QUpdateJobProgress overwrites the snapshot wholesale. Snapshots are full
// values keyed by progress_version, never deltas.
const QUpdateJobProgress = `--sql c9dd0c6d-7892-4f86-b3b5-f6d351df245f
update jobs
set status = $2::text,
    snapshot = $3::jsonb,
    progress_version = $4::bigint,
    error_message = nullif($5::text, ''),
    started_at = coalesce(started_at, $6::timestamptz),
    finished_at = $7::timestamptz
where id = $1::uuid;
`

const QSelectJobByID = `--sql d5096263-8bdb-4eb7-9667-bc6545d42d25
select id, story_id, type, status, snapshot, progress_version, coalesce(error_message, ''), created_at, started_at, finished_at
from jobs
where id = $1::uuid
limit 1;
`
