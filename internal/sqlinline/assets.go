package sqlinline

const QSelectAssetBySlot = `--sql 80d9fab5-cb88-4fb1-8a78-babf58222a1f
select id, story_id, kind, ordinal, storage_key, thumb_key, mime, meta, created_at, updated_at
from assets
where story_id = $1::uuid and kind = $2::text and ordinal = $3::int
limit 1;
`

// QInsertAssetIfAbsent relies on the unique slot constraint: when a
// concurrent writer already committed the slot, no row is returned and the
// caller re-reads the winner instead of erroring.
const QInsertAssetIfAbsent = `--sql 02ba05ac-ebcd-492a-816c-b20a3a28700e
insert into assets(id, story_id, kind, ordinal, storage_key, thumb_key, mime, meta, created_at, updated_at)
values (gen_random_uuid(), $1::uuid, $2::text, $3::int, $4::text, nullif($5::text, ''), $6::text, $7::jsonb, now(), now())
on conflict (story_id, kind, ordinal) do nothing
returning id, story_id, kind, ordinal, storage_key, thumb_key, mime, meta, created_at, updated_at;
`

const QUpsertAsset = `--sql 0ac743e6-d1d5-4a65-b2ce-a04eabae70c4
insert into assets(id, story_id, kind, ordinal, storage_key, thumb_key, mime, meta, created_at, updated_at)
values (gen_random_uuid(), $1::uuid, $2::text, $3::int, $4::text, nullif($5::text, ''), $6::text, $7::jsonb, now(), now())
on conflict (story_id, kind, ordinal) do update
set storage_key = excluded.storage_key,
    thumb_key = excluded.thumb_key,
    mime = excluded.mime,
    meta = excluded.meta,
    updated_at = now()
returning id, story_id, kind, ordinal, storage_key, thumb_key, mime, meta, created_at, updated_at;
`

const QListAssetsByStory = `--sql f3d4c125-7033-42b4-9b62-e9b77682c6e8
select id, story_id, kind, ordinal, storage_key, thumb_key, mime, meta, created_at, updated_at
from assets
where story_id = $1::uuid
order by kind asc, ordinal asc;
`
